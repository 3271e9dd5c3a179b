package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/emailgen-labs/emailgen-api/internal/models"
)

// DeploymentRepository persists deployment jobs.
type DeploymentRepository struct {
	db *sqlx.DB
}

// NewDeploymentRepository constructs the repository.
func NewDeploymentRepository(db *sqlx.DB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

// Create inserts a queued deployment.
func (r *DeploymentRepository) Create(ctx context.Context, dep *models.Deployment) error {
	if dep.ID == "" {
		dep.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = now
	}
	dep.UpdatedAt = now
	if dep.Status == "" {
		dep.Status = models.DeploymentStatusQueued
	}
	const query = `INSERT INTO deployments
	(id, document_id, version, status, platform_asset_id, error_message, created_by, finished_at, created_at, updated_at)
	VALUES (:id, :document_id, :version, :status, :platform_asset_id, :error_message, :created_by, :finished_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dep); err != nil {
		return fmt.Errorf("create deployment: %w", err)
	}
	return nil
}

// GetByID retrieves one deployment row.
func (r *DeploymentRepository) GetByID(ctx context.Context, id string) (*models.Deployment, error) {
	const query = `SELECT id, document_id, version, status, platform_asset_id, error_message, created_by, finished_at, created_at, updated_at
	FROM deployments WHERE id = $1`
	var dep models.Deployment
	if err := r.db.GetContext(ctx, &dep, query, id); err != nil {
		return nil, err
	}
	return &dep, nil
}

// ListByDocument returns deployments for a document, newest first.
func (r *DeploymentRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Deployment, error) {
	const query = `SELECT id, document_id, version, status, platform_asset_id, error_message, created_by, finished_at, created_at, updated_at
	FROM deployments WHERE document_id = $1 ORDER BY created_at DESC`
	var deps []models.Deployment
	if err := r.db.SelectContext(ctx, &deps, query, documentID); err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return deps, nil
}

// MarkProcessing transitions a deployment to PROCESSING.
func (r *DeploymentRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE deployments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.DeploymentStatusProcessing, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark deployment processing: %w", err)
	}
	return nil
}

// MarkSucceeded finishes a deployment with the platform asset identifier.
func (r *DeploymentRepository) MarkSucceeded(ctx context.Context, id, assetID string) error {
	now := time.Now().UTC()
	const query = `UPDATE deployments SET status = $2, platform_asset_id = $3, finished_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.DeploymentStatusSucceeded, assetID, now); err != nil {
		return fmt.Errorf("mark deployment succeeded: %w", err)
	}
	return nil
}

// MarkFailed finishes a deployment with an error message.
func (r *DeploymentRepository) MarkFailed(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	const query = `UPDATE deployments SET status = $2, error_message = $3, finished_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.DeploymentStatusFailed, message, now); err != nil {
		return fmt.Errorf("mark deployment failed: %w", err)
	}
	return nil
}
