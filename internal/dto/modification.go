package dto

import "github.com/emailgen-labs/emailgen-api/internal/models"

// ProposeModificationRequest asks the assistant for an edit suggestion.
type ProposeModificationRequest struct {
	Instruction string `json:"instruction" validate:"required,max=2000"`
}

// ModificationResponse pairs a modification with the resulting content when a
// document rewrite occurred.
type ModificationResponse struct {
	Modification models.Modification `json:"modification"`
	Content      string              `json:"content,omitempty"`
}
