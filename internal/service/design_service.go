package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
)

type designStore interface {
	Create(ctx context.Context, design *models.Design) error
	GetByID(ctx context.Context, id string) (*models.Design, error)
	List(ctx context.Context, filter dto.DesignFilter) ([]models.Design, int, error)
	SoftDelete(ctx context.Context, id string, ts time.Time) error
}

type designFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type designSignedURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// DesignUpload carries upload metadata and the stream reader.
type DesignUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// DesignDownload bundles file reader metadata for streaming.
type DesignDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// DesignServiceConfig holds validation parameters for uploads.
type DesignServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// DesignService manages design metadata and storage IO.
type DesignService struct {
	repo    designStore
	storage designFileStorage
	signer  designSignedURLSigner
	audit   auditLogger
	logger  *zap.Logger
	cfg     DesignServiceConfig
	mimeSet map[string]struct{}
}

// NewDesignService constructs the service with defaults.
func NewDesignService(repo designStore, storage designFileStorage, signer designSignedURLSigner, audit auditLogger, logger *zap.Logger, cfg DesignServiceConfig) *DesignService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 15 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/png", "image/jpeg", "image/webp", "application/pdf"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &DesignService{
		repo:    repo,
		storage: storage,
		signer:  signer,
		audit:   audit,
		logger:  logger,
		cfg:     cfg,
		mimeSet: mimeSet,
	}
}

// Upload persists metadata and the physical file for a new design.
func (s *DesignService) Upload(ctx context.Context, meta dto.CreateDesignRequest, upload DesignUpload, actor *models.JWTClaims) (*models.Design, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}
	if strings.TrimSpace(meta.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}

	mimeType, head, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}

	kind := models.DesignKindImage
	pages := 1
	if mimeType == "application/pdf" {
		kind = models.DesignKindPDF
		pages = countPDFPages(head, upload.Content, upload.Size)
	}

	filename := s.generateFilename(upload.Filename, mimeType)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	path, err := s.storage.SaveStream(filename, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist design file")
	}

	design := &models.Design{
		OwnerID:     actor.UserID,
		Title:       meta.Title,
		Kind:        kind,
		Filename:    upload.Filename,
		StoragePath: path,
		MimeType:    mimeType,
		SizeBytes:   upload.Size,
		PageCount:   pages,
	}
	if err := s.repo.Create(ctx, design); err != nil {
		_ = s.storage.Delete(path)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create design metadata")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDesignUpload,
		Resource:   "design",
		ResourceID: &design.ID,
		NewValues:  []byte(fmt.Sprintf(`{"title":%q,"kind":%q}`, design.Title, design.Kind)),
	})
	return design, nil
}

// List returns designs visible to the actor.
func (s *DesignService) List(ctx context.Context, filter dto.DesignFilter, actor *models.JWTClaims) ([]models.Design, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	designs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list designs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return designs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns design metadata.
func (s *DesignService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Design, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	design, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load design")
	}
	if design.DeletedAt != nil {
		return nil, appErrors.ErrNotFound
	}
	return design, nil
}

// GetDownloadURL generates a signed URL for downloading the file.
func (s *DesignService) GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	design, err := s.Get(ctx, id, actor)
	if err != nil {
		return "", err
	}
	token, _, err := s.signer.Generate(design.ID, design.StoragePath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/designs/%s/download?token=%s", base, design.ID, token), nil
}

// Download validates the token and opens the design file.
func (s *DesignService) Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*DesignDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	design, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	designID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if designID != design.ID || relPath != design.StoragePath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open design file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read design metadata")
	}
	return &DesignDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		MimeType:  design.MimeType,
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

// ReadFile loads the full design file for conversion processing.
func (s *DesignService) ReadFile(ctx context.Context, design *models.Design) ([]byte, error) {
	file, err := s.storage.Open(design.StoragePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open design file")
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read design file")
	}
	return data, nil
}

// Delete marks a design as deleted (soft delete).
func (s *DesignService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	design, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && design.OwnerID != actor.UserID {
		return appErrors.ErrForbidden
	}
	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete design")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDesignDelete,
		Resource:   "design",
		ResourceID: &id,
	})
	return nil
}

func (s *DesignService) detectMime(upload DesignUpload) (string, []byte, error) {
	head := make([]byte, 512)
	n, err := upload.Content.Read(head)
	if err != nil && err != io.EOF {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload header")
	}
	head = head[:n]
	detected := http.DetectContentType(head)
	// DetectContentType appends charset parameters for text types.
	if idx := strings.Index(detected, ";"); idx >= 0 {
		detected = detected[:idx]
	}
	return strings.TrimSpace(detected), head, nil
}

func (s *DesignService) generateFilename(original, mimeType string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	ext := filepath.Ext(original)
	if ext == "" {
		switch mimeType {
		case "image/png":
			ext = ".png"
		case "image/jpeg":
			ext = ".jpg"
		case "image/webp":
			ext = ".webp"
		case "application/pdf":
			ext = ".pdf"
		}
	}
	return fmt.Sprintf("%d_%s%s", time.Now().UTC().Unix(), hex.EncodeToString(buf), ext)
}

func (s *DesignService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record design audit log", zap.Error(err))
	}
}

// countPDFPages estimates the page count by scanning for page objects. The
// heuristic over-reads nothing: a wrong count only affects progress reporting.
func countPDFPages(head []byte, content io.ReadSeeker, size int64) int {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return 1
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(content, data); err != nil {
		return 1
	}
	pages := bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
	if pages < 1 {
		pages = bytes.Count(data, []byte("/Type/Page")) - bytes.Count(data, []byte("/Type/Pages"))
	}
	if pages < 1 {
		return 1
	}
	return pages
}
