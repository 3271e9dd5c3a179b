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

// DesignRepository handles design metadata persistence.
type DesignRepository struct {
	db *sqlx.DB
}

// NewDesignRepository constructs the repository.
func NewDesignRepository(db *sqlx.DB) *DesignRepository {
	return &DesignRepository{db: db}
}

// Create stores metadata for an uploaded design file.
func (r *DesignRepository) Create(ctx context.Context, design *models.Design) error {
	if design.ID == "" {
		design.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if design.CreatedAt.IsZero() {
		design.CreatedAt = now
	}
	design.UpdatedAt = now
	const query = `INSERT INTO designs
	(id, owner_id, title, kind, filename, storage_path, mime_type, size_bytes, page_count, deleted_at, created_at, updated_at)
	VALUES (:id, :owner_id, :title, :kind, :filename, :storage_path, :mime_type, :size_bytes, :page_count, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, design); err != nil {
		return fmt.Errorf("create design: %w", err)
	}
	return nil
}

// GetByID retrieves one design row.
func (r *DesignRepository) GetByID(ctx context.Context, id string) (*models.Design, error) {
	const query = `SELECT id, owner_id, title, kind, filename, storage_path, mime_type, size_bytes, page_count, deleted_at, created_at, updated_at
	FROM designs WHERE id = $1`
	var design models.Design
	if err := r.db.GetContext(ctx, &design, query, id); err != nil {
		return nil, err
	}
	return &design, nil
}

// List returns non-deleted designs matching the filter, newest first.
func (r *DesignRepository) List(ctx context.Context, filter dto.DesignFilter) ([]models.Design, int, error) {
	baseQuery := `FROM designs WHERE deleted_at IS NULL`
	args := make([]interface{}, 0, 2)
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		baseQuery += fmt.Sprintf(" AND (LOWER(title) LIKE $%d OR LOWER(filename) LIKE $%d)", len(args), len(args))
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

	listQuery := fmt.Sprintf(`SELECT id, owner_id, title, kind, filename, storage_path, mime_type, size_bytes, page_count, deleted_at, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var designs []models.Design
	if err := r.db.SelectContext(ctx, &designs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list designs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count designs: %w", err)
	}

	return designs, total, nil
}

// UpdatePageCount records the page count discovered during conversion.
func (r *DesignRepository) UpdatePageCount(ctx context.Context, id string, pages int) error {
	const query = `UPDATE designs SET page_count = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, pages, time.Now().UTC()); err != nil {
		return fmt.Errorf("update design page count: %w", err)
	}
	return nil
}

// SoftDelete marks a design deleted without removing the row.
func (r *DesignRepository) SoftDelete(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE designs SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, ts)
	if err != nil {
		return fmt.Errorf("soft delete design: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("design %s not found or already deleted", id)
	}
	return nil
}
