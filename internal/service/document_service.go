package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter dto.DocumentFilter) ([]models.Document, int, error)
	SaveNewVersion(ctx context.Context, doc *models.Document, comment, createdBy string) (int, error)
	GetVersion(ctx context.Context, documentID string, version int) (*models.DocumentVersion, error)
	ListVersions(ctx context.Context, documentID string) ([]models.DocumentVersion, error)
	SoftDelete(ctx context.Context, id string, ts time.Time) error
}

// DocumentService manages HTML email documents and their version history.
type DocumentService struct {
	repo   documentStore
	audit  auditLogger
	logger *zap.Logger
	policy *bluemonday.Policy
}

// NewDocumentService constructs the service.
func NewDocumentService(repo documentStore, audit auditLogger, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:   repo,
		audit:  audit,
		logger: logger,
		policy: emailHTMLPolicy(),
	}
}

// emailHTMLPolicy permits the table-and-inline-style markup email clients
// expect while stripping scripts and event handlers.
func emailHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("html", "head", "body", "title", "meta", "center", "font", "style")
	p.AllowAttrs("style").Globally()
	p.AllowAttrs("width", "height", "align", "valign", "bgcolor", "border", "cellpadding", "cellspacing", "role").OnElements("table", "td", "tr", "th", "tbody", "thead", "img", "body")
	p.AllowAttrs("color", "face", "size").OnElements("font")
	p.AllowAttrs("content", "name", "charset", "http-equiv").OnElements("meta")
	p.AllowStyling()
	return p
}

// Sanitize strips unsafe markup from document content.
func (s *DocumentService) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}

// Create starts a new document from raw content.
func (s *DocumentService) Create(ctx context.Context, req dto.CreateDocumentRequest, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and content are required")
	}

	doc := &models.Document{
		OwnerID: actor.UserID,
		Title:   req.Title,
		Subject: req.Subject,
		Content: s.Sanitize(req.Content),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionDocumentSave, doc.ID, fmt.Sprintf(`{"version":%d}`, doc.CurrentVersion))
	return doc, nil
}

// CreateFromConversion persists an AI-converted document on behalf of the
// user who started the conversion.
func (s *DocumentService) CreateFromConversion(ctx context.Context, ownerID, title, subject, content, sourceDesignID string) (*models.Document, error) {
	doc := &models.Document{
		OwnerID:        ownerID,
		Title:          title,
		Subject:        subject,
		Content:        s.Sanitize(content),
		SourceDesignID: &sourceDesignID,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create converted document: %w", err)
	}
	return doc, nil
}

// Get returns a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.DeletedAt != nil {
		return nil, appErrors.ErrNotFound
	}
	return doc, nil
}

// List returns documents matching the filter.
func (s *DocumentService) List(ctx context.Context, filter dto.DocumentFilter, actor *models.JWTClaims) ([]models.Document, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return docs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update saves new content as the next version.
func (s *DocumentService) Update(ctx context.Context, id string, req dto.UpdateDocumentRequest, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content is required")
	}

	doc, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	doc.Content = s.Sanitize(req.Content)
	if req.Subject != nil {
		doc.Subject = *req.Subject
	}

	version, err := s.repo.SaveNewVersion(ctx, doc, req.Comment, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document version")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionDocumentSave, doc.ID, fmt.Sprintf(`{"version":%d}`, version))
	return doc, nil
}

// ListVersions returns the version history, newest first.
func (s *DocumentService) ListVersions(ctx context.Context, id string, actor *models.JWTClaims) ([]models.DocumentVersion, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}

// GetVersion returns one version snapshot including its content.
func (s *DocumentService) GetVersion(ctx context.Context, id string, version int, actor *models.JWTClaims) (*models.DocumentVersion, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	ver, err := s.repo.GetVersion(ctx, id, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	return ver, nil
}

// RestoreVersion copies an earlier snapshot forward as a new version. History
// is append-only: restoring never rewrites existing snapshots.
func (s *DocumentService) RestoreVersion(ctx context.Context, id string, req dto.RestoreVersionRequest, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}

	doc, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if req.Version == doc.CurrentVersion {
		return nil, appErrors.Clone(appErrors.ErrValidation, "version is already current")
	}

	ver, err := s.repo.GetVersion(ctx, id, req.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}

	doc.Content = ver.Content
	comment := fmt.Sprintf("restored from version %d", req.Version)
	newVersion, err := s.repo.SaveNewVersion(ctx, doc, comment, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore version")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionDocumentRestore, doc.ID, fmt.Sprintf(`{"from":%d,"to":%d}`, req.Version, newVersion))
	return doc, nil
}

// Delete marks a document as deleted.
func (s *DocumentService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	doc, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && doc.OwnerID != actor.UserID {
		return appErrors.ErrForbidden
	}
	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	return nil
}

func (s *DocumentService) emitAudit(ctx context.Context, actorID, action, resourceID, payload string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "document",
		ResourceID: &resourceID,
		NewValues:  []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record document audit log", zap.Error(err))
	}
}
