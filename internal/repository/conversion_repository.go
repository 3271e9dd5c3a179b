package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/emailgen-labs/emailgen-api/internal/models"
)

// ConversionRepository persists asynchronous conversion jobs.
type ConversionRepository struct {
	db *sqlx.DB
}

// NewConversionRepository constructs the repository.
func NewConversionRepository(db *sqlx.DB) *ConversionRepository {
	return &ConversionRepository{db: db}
}

// Create inserts a queued conversion job.
func (r *ConversionRepository) Create(ctx context.Context, conv *models.Conversion) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	if conv.Status == "" {
		conv.Status = models.ConversionStatusQueued
	}
	const query = `INSERT INTO conversions
	(id, design_id, document_id, status, progress, pages_total, pages_done, error_message, created_by, started_at, finished_at, created_at, updated_at)
	VALUES (:id, :design_id, :document_id, :status, :progress, :pages_total, :pages_done, :error_message, :created_by, :started_at, :finished_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, conv); err != nil {
		return fmt.Errorf("create conversion: %w", err)
	}
	return nil
}

// GetByID retrieves one conversion row.
func (r *ConversionRepository) GetByID(ctx context.Context, id string) (*models.Conversion, error) {
	const query = `SELECT id, design_id, document_id, status, progress, pages_total, pages_done, error_message, created_by, started_at, finished_at, created_at, updated_at
	FROM conversions WHERE id = $1`
	var conv models.Conversion
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		return nil, err
	}
	return &conv, nil
}

// MarkProcessing transitions a job to PROCESSING and stamps started_at.
func (r *ConversionRepository) MarkProcessing(ctx context.Context, id string, pagesTotal int) error {
	now := time.Now().UTC()
	const query = `UPDATE conversions SET status = $2, pages_total = $3, started_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ConversionStatusProcessing, pagesTotal, now); err != nil {
		return fmt.Errorf("mark conversion processing: %w", err)
	}
	return nil
}

// UpdateProgress records page-level progress for a running job.
func (r *ConversionRepository) UpdateProgress(ctx context.Context, id string, pagesDone, progress int) error {
	const query = `UPDATE conversions SET pages_done = $2, progress = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, pagesDone, progress, time.Now().UTC()); err != nil {
		return fmt.Errorf("update conversion progress: %w", err)
	}
	return nil
}

// MarkCompleted finishes a job and links the produced document.
func (r *ConversionRepository) MarkCompleted(ctx context.Context, id, documentID string) error {
	now := time.Now().UTC()
	const query = `UPDATE conversions SET status = $2, document_id = $3, progress = 100, finished_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ConversionStatusCompleted, documentID, now); err != nil {
		return fmt.Errorf("mark conversion completed: %w", err)
	}
	return nil
}

// MarkFailed finishes a job with an error message.
func (r *ConversionRepository) MarkFailed(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	const query = `UPDATE conversions SET status = $2, error_message = $3, finished_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ConversionStatusFailed, message, now); err != nil {
		return fmt.Errorf("mark conversion failed: %w", err)
	}
	return nil
}

// ListPending returns jobs still queued or processing, oldest first.
// Used on startup to requeue work interrupted by a restart.
func (r *ConversionRepository) ListPending(ctx context.Context) ([]models.Conversion, error) {
	const query = `SELECT id, design_id, document_id, status, progress, pages_total, pages_done, error_message, created_by, started_at, finished_at, created_at, updated_at
	FROM conversions WHERE status IN ($1, $2) ORDER BY created_at ASC`
	var convs []models.Conversion
	if err := r.db.SelectContext(ctx, &convs, query, models.ConversionStatusQueued, models.ConversionStatusProcessing); err != nil {
		return nil, fmt.Errorf("list pending conversions: %w", err)
	}
	return convs, nil
}

// DeleteFinishedBefore removes terminal jobs older than the cutoff.
func (r *ConversionRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM conversions WHERE status IN ($1, $2) AND finished_at IS NOT NULL AND finished_at < $3`
	res, err := r.db.ExecContext(ctx, query, models.ConversionStatusCompleted, models.ConversionStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete finished conversions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}
