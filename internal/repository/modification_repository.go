package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/emailgen-labs/emailgen-api/internal/models"
)

// ModificationRepository persists AI-proposed edits and their lifecycle state.
type ModificationRepository struct {
	db *sqlx.DB
}

// NewModificationRepository constructs the repository.
func NewModificationRepository(db *sqlx.DB) *ModificationRepository {
	return &ModificationRepository{db: db}
}

// Create inserts a proposed modification.
func (r *ModificationRepository) Create(ctx context.Context, mod *models.Modification) error {
	if mod.ID == "" {
		mod.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mod.CreatedAt.IsZero() {
		mod.CreatedAt = now
	}
	mod.UpdatedAt = now
	if mod.Status == "" {
		mod.Status = models.ModificationStatusProposed
	}
	const query = `INSERT INTO modifications
	(id, document_id, description, original_code, new_code, start_line, end_line, start_col, end_col, status, created_by, applied_at, created_at, updated_at)
	VALUES (:id, :document_id, :description, :original_code, :new_code, :start_line, :end_line, :start_col, :end_col, :status, :created_by, :applied_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mod); err != nil {
		return fmt.Errorf("create modification: %w", err)
	}
	return nil
}

// GetByID retrieves one modification row.
func (r *ModificationRepository) GetByID(ctx context.Context, id string) (*models.Modification, error) {
	const query = `SELECT id, document_id, description, original_code, new_code, start_line, end_line, start_col, end_col, status, created_by, applied_at, created_at, updated_at
	FROM modifications WHERE id = $1`
	var mod models.Modification
	if err := r.db.GetContext(ctx, &mod, query, id); err != nil {
		return nil, err
	}
	return &mod, nil
}

// ListByDocument returns all modifications for a document, newest first.
func (r *ModificationRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Modification, error) {
	const query = `SELECT id, document_id, description, original_code, new_code, start_line, end_line, start_col, end_col, status, created_by, applied_at, created_at, updated_at
	FROM modifications WHERE document_id = $1 ORDER BY created_at DESC`
	var mods []models.Modification
	if err := r.db.SelectContext(ctx, &mods, query, documentID); err != nil {
		return nil, fmt.Errorf("list modifications: %w", err)
	}
	return mods, nil
}

// UpdateStatus transitions a modification and stamps applied_at when entering
// the applied state.
func (r *ModificationRepository) UpdateStatus(ctx context.Context, id string, status models.ModificationStatus) error {
	now := time.Now().UTC()
	var appliedAt *time.Time
	if status == models.ModificationStatusApplied {
		appliedAt = &now
	}
	const query = `UPDATE modifications SET status = $2, applied_at = COALESCE($3, applied_at), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, appliedAt, now); err != nil {
		return fmt.Errorf("update modification status: %w", err)
	}
	return nil
}
