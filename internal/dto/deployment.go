package dto

import "github.com/emailgen-labs/emailgen-api/internal/models"

// CreateDeploymentRequest pushes a document version to the marketing platform.
type CreateDeploymentRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	Version    int    `json:"version" validate:"omitempty,min=1"`
}

// DeploymentResponse reports deployment state to polling clients.
type DeploymentResponse struct {
	ID              string                  `json:"id"`
	DocumentID      string                  `json:"document_id"`
	Version         int                     `json:"version"`
	Status          models.DeploymentStatus `json:"status"`
	PlatformAssetID *string                 `json:"platform_asset_id,omitempty"`
	ErrorMessage    *string                 `json:"error_message,omitempty"`
}
