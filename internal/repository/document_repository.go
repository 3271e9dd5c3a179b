package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
)

// DocumentRepository persists documents and their version history.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document together with its first version snapshot.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.CurrentVersion == 0 {
		doc.CurrentVersion = 1
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create document: %w", err)
	}
	defer tx.Rollback()

	const docQuery = `INSERT INTO documents
	(id, owner_id, title, subject, content, current_version, source_design_id, deleted_at, created_at, updated_at)
	VALUES (:id, :owner_id, :title, :subject, :content, :current_version, :source_design_id, :deleted_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, docQuery, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	version := models.DocumentVersion{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Version:    doc.CurrentVersion,
		Content:    doc.Content,
		Comment:    "initial version",
		CreatedBy:  doc.OwnerID,
		CreatedAt:  now,
	}
	const verQuery = `INSERT INTO document_versions
	(id, document_id, version, content, comment, created_by, created_at)
	VALUES (:id, :document_id, :version, :content, :comment, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, verQuery, version); err != nil {
		return fmt.Errorf("create document version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document row.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, owner_id, title, subject, content, current_version, source_design_id, deleted_at, created_at, updated_at
	FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns non-deleted documents matching the filter, newest first.
func (r *DocumentRepository) List(ctx context.Context, filter dto.DocumentFilter) ([]models.Document, int, error) {
	baseQuery := `FROM documents WHERE deleted_at IS NULL`
	args := make([]interface{}, 0, 2)
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		baseQuery += fmt.Sprintf(" AND (LOWER(title) LIKE $%d OR LOWER(subject) LIKE $%d)", len(args), len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT id, owner_id, title, subject, content, current_version, source_design_id, deleted_at, created_at, updated_at %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	return docs, total, nil
}

// SaveNewVersion writes new content as the next version and advances the
// document pointer in one transaction. Returns the new version number.
func (r *DocumentRepository) SaveNewVersion(ctx context.Context, doc *models.Document, comment, createdBy string) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save version: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	next := doc.CurrentVersion + 1

	version := models.DocumentVersion{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Version:    next,
		Content:    doc.Content,
		Comment:    comment,
		CreatedBy:  createdBy,
		CreatedAt:  now,
	}
	const verQuery = `INSERT INTO document_versions
	(id, document_id, version, content, comment, created_by, created_at)
	VALUES (:id, :document_id, :version, :content, :comment, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, verQuery, version); err != nil {
		return 0, fmt.Errorf("insert document version: %w", err)
	}

	const docQuery = `UPDATE documents SET subject = $2, content = $3, current_version = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, docQuery, doc.ID, doc.Subject, doc.Content, next, now); err != nil {
		return 0, fmt.Errorf("advance document version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save version: %w", err)
	}
	doc.CurrentVersion = next
	doc.UpdatedAt = now
	return next, nil
}

// GetVersion retrieves one version snapshot.
func (r *DocumentRepository) GetVersion(ctx context.Context, documentID string, version int) (*models.DocumentVersion, error) {
	const query = `SELECT id, document_id, version, content, comment, created_by, created_at
	FROM document_versions WHERE document_id = $1 AND version = $2`
	var ver models.DocumentVersion
	if err := r.db.GetContext(ctx, &ver, query, documentID, version); err != nil {
		return nil, err
	}
	return &ver, nil
}

// ListVersions returns version metadata for a document, newest first.
// Content is excluded to keep history listings light.
func (r *DocumentRepository) ListVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error) {
	const query = `SELECT id, document_id, version, '' AS content, comment, created_by, created_at
	FROM document_versions WHERE document_id = $1 ORDER BY version DESC`
	var versions []models.DocumentVersion
	if err := r.db.SelectContext(ctx, &versions, query, documentID); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return versions, nil
}

// SoftDelete marks a document deleted without removing history.
func (r *DocumentRepository) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE documents SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, ts)
	if err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("document %s not found or already deleted", id)
	}
	return nil
}
