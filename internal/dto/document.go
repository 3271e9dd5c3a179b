package dto

import "github.com/emailgen-labs/emailgen-api/internal/models"

// CreateDocumentRequest starts a document from scratch (no conversion).
type CreateDocumentRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Subject string `json:"subject" validate:"max=300"`
	Content string `json:"content" validate:"required"`
}

// UpdateDocumentRequest saves new content, producing a new version.
type UpdateDocumentRequest struct {
	Subject *string `json:"subject,omitempty" validate:"omitempty,max=300"`
	Content string  `json:"content" validate:"required"`
	Comment string  `json:"comment" validate:"max=500"`
}

// RestoreVersionRequest rolls the document back to an earlier version.
type RestoreVersionRequest struct {
	Version int `json:"version" validate:"required,min=1"`
}

// DocumentFilter captures query parameters for listing documents.
type DocumentFilter struct {
	Search   string
	Page     int
	PageSize int
}

// VersionSummary describes a version row without its full content.
type VersionSummary struct {
	Version   int    `json:"version"`
	Comment   string `json:"comment"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// DocumentResponse is the full document payload for the editor.
type DocumentResponse struct {
	Document models.Document `json:"document"`
}
