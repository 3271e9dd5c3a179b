package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/emailgen-labs/emailgen-api/internal/models"
)

// QARepository persists QA rule runs.
type QARepository struct {
	db *sqlx.DB
}

// NewQARepository constructs the repository.
func NewQARepository(db *sqlx.DB) *QARepository {
	return &QARepository{db: db}
}

// Create inserts a QA run with its serialized findings.
func (r *QARepository) Create(ctx context.Context, run *models.QARun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO qa_runs
	(id, document_id, version, passed, findings, run_by, created_at)
	VALUES (:id, :document_id, :version, :passed, :findings, :run_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create qa run: %w", err)
	}
	return nil
}

// GetLatest returns the most recent run for a document version.
func (r *QARepository) GetLatest(ctx context.Context, documentID string, version int) (*models.QARun, error) {
	const query = `SELECT id, document_id, version, passed, findings, run_by, created_at
	FROM qa_runs WHERE document_id = $1 AND version = $2 ORDER BY created_at DESC LIMIT 1`
	var run models.QARun
	if err := r.db.GetContext(ctx, &run, query, documentID, version); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByDocument returns run history for a document, newest first.
func (r *QARepository) ListByDocument(ctx context.Context, documentID string) ([]models.QARun, error) {
	const query = `SELECT id, document_id, version, passed, findings, run_by, created_at
	FROM qa_runs WHERE document_id = $1 ORDER BY created_at DESC`
	var runs []models.QARun
	if err := r.db.SelectContext(ctx, &runs, query, documentID); err != nil {
		return nil, fmt.Errorf("list qa runs: %w", err)
	}
	return runs, nil
}
