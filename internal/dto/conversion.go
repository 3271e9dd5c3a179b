package dto

import "github.com/emailgen-labs/emailgen-api/internal/models"

// CreateConversionRequest starts a conversion for an uploaded design.
type CreateConversionRequest struct {
	DesignID     string `json:"design_id" validate:"required"`
	Title        string `json:"title" validate:"max=200"`
	Instructions string `json:"instructions" validate:"max=2000"`
}

// ConversionStatusResponse reports job progress to polling clients.
type ConversionStatusResponse struct {
	ID           string                  `json:"id"`
	DesignID     string                  `json:"design_id"`
	DocumentID   *string                 `json:"document_id,omitempty"`
	Status       models.ConversionStatus `json:"status"`
	Progress     int                     `json:"progress"`
	PagesTotal   int                     `json:"pages_total"`
	PagesDone    int                     `json:"pages_done"`
	ErrorMessage *string                 `json:"error_message,omitempty"`
}
