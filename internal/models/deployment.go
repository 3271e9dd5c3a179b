package models

import "time"

// DeploymentStatus tracks a deployment job.
type DeploymentStatus string

const (
	DeploymentStatusQueued     DeploymentStatus = "QUEUED"
	DeploymentStatusProcessing DeploymentStatus = "PROCESSING"
	DeploymentStatusSucceeded  DeploymentStatus = "SUCCEEDED"
	DeploymentStatusFailed     DeploymentStatus = "FAILED"
)

// Deployment records a (simulated) push of a document version to the marketing platform.
type Deployment struct {
	ID              string           `db:"id" json:"id"`
	DocumentID      string           `db:"document_id" json:"document_id"`
	Version         int              `db:"version" json:"version"`
	Status          DeploymentStatus `db:"status" json:"status"`
	PlatformAssetID *string          `db:"platform_asset_id" json:"platform_asset_id,omitempty"`
	ErrorMessage    *string          `db:"error_message" json:"error_message,omitempty"`
	CreatedBy       string           `db:"created_by" json:"created_by"`
	FinishedAt      *time.Time       `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}
