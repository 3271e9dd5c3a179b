package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
	"github.com/emailgen-labs/emailgen-api/pkg/jobs"
)

type conversionStore interface {
	Create(ctx context.Context, conv *models.Conversion) error
	GetByID(ctx context.Context, id string) (*models.Conversion, error)
	MarkProcessing(ctx context.Context, id string, pagesTotal int) error
	UpdateProgress(ctx context.Context, id string, pagesDone, progress int) error
	MarkCompleted(ctx context.Context, id, documentID string) error
	MarkFailed(ctx context.Context, id, message string) error
	ListPending(ctx context.Context) ([]models.Conversion, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type conversionDesignStore interface {
	GetByID(ctx context.Context, id string) (*models.Design, error)
}

type conversionFileStorage interface {
	Open(filename string) (*os.File, error)
}

type designConverter interface {
	ConvertDesign(ctx context.Context, image []byte, mimeType, instructions string) (string, error)
}

type conversionDocumentWriter interface {
	CreateFromConversion(ctx context.Context, ownerID, title, subject, content, sourceDesignID string) (*models.Document, error)
}

type progressCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ConversionJobPayload rides along with queued conversion jobs.
type ConversionJobPayload struct {
	Title        string
	Instructions string
}

// ConversionServiceConfig governs queue recovery and cleanup.
type ConversionServiceConfig struct {
	ResultTTL        time.Duration
	CleanupInterval  time.Duration
	ProgressCacheTTL time.Duration
}

// ConversionService orchestrates design-to-HTML conversion jobs.
type ConversionService struct {
	repo      conversionStore
	designs   conversionDesignStore
	storage   conversionFileStorage
	converter designConverter
	documents conversionDocumentWriter
	queue     jobDispatcher
	cache     progressCache
	logger    *zap.Logger
	cfg       ConversionServiceConfig
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NewConversionService constructs the conversion service.
func NewConversionService(repo conversionStore, designs conversionDesignStore, storage conversionFileStorage, converter designConverter, documents conversionDocumentWriter, queue jobDispatcher, cache progressCache, logger *zap.Logger, cfg ConversionServiceConfig) *ConversionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 7 * 24 * time.Hour
	}
	if cfg.ProgressCacheTTL <= 0 {
		cfg.ProgressCacheTTL = time.Minute
	}
	return &ConversionService{
		repo:      repo,
		designs:   designs,
		storage:   storage,
		converter: converter,
		documents: documents,
		queue:     queue,
		cache:     cache,
		logger:    logger,
		cfg:       cfg,
	}
}

// Create validates the request, persists the job, and enqueues processing.
func (s *ConversionService) Create(ctx context.Context, req dto.CreateConversionRequest, actor *models.JWTClaims) (*dto.ConversionStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}
	if req.DesignID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "design_id is required")
	}

	design, err := s.designs.GetByID(ctx, req.DesignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "design not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load design")
	}
	if design.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "design not found")
	}

	conv := &models.Conversion{
		DesignID:  design.ID,
		Status:    models.ConversionStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create conversion")
	}

	payload := ConversionJobPayload{Title: req.Title, Instructions: req.Instructions}
	if err := s.queue.Enqueue(jobs.Job{ID: conv.ID, Type: "conversion", Payload: payload}); err != nil {
		_ = s.repo.MarkFailed(ctx, conv.ID, "failed to enqueue conversion")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue conversion")
	}

	return s.statusResponse(conv), nil
}

// GetStatus reports job progress, preferring the cache while a job runs.
func (s *ConversionService) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ConversionStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if s.cache != nil {
		var cached dto.ConversionStatusResponse
		if err := s.cache.Get(ctx, progressKey(id), &cached); err == nil {
			return &cached, nil
		}
	}

	conv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversion")
	}
	return s.statusResponse(conv), nil
}

// Process is the queue handler converting one design into an HTML document.
func (s *ConversionService) Process(ctx context.Context, job jobs.Job) error {
	conv, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load conversion %s: %w", job.ID, err)
	}
	if conv.Status == models.ConversionStatusCompleted {
		return nil
	}

	payload, _ := job.Payload.(ConversionJobPayload)

	design, err := s.designs.GetByID(ctx, conv.DesignID)
	if err != nil {
		_ = s.repo.MarkFailed(ctx, conv.ID, "design no longer available")
		return fmt.Errorf("load design %s: %w", conv.DesignID, err)
	}

	data, err := s.readDesignFile(design)
	if err != nil {
		_ = s.repo.MarkFailed(ctx, conv.ID, "failed to read design file")
		return err
	}

	pagesTotal := design.PageCount
	if pagesTotal < 1 {
		pagesTotal = 1
	}
	if err := s.repo.MarkProcessing(ctx, conv.ID, pagesTotal); err != nil {
		return err
	}
	s.cacheProgress(ctx, conv.ID, conv.DesignID, models.ConversionStatusProcessing, 0, pagesTotal, 0)

	var sections []string
	for page := 1; page <= pagesTotal; page++ {
		instructions := payload.Instructions
		if pagesTotal > 1 {
			instructions = strings.TrimSpace(fmt.Sprintf("%s\nConvert page %d of %d.", payload.Instructions, page, pagesTotal))
		}
		html, err := s.converter.ConvertDesign(ctx, data, design.MimeType, instructions)
		if err != nil {
			_ = s.repo.MarkFailed(ctx, conv.ID, fmt.Sprintf("conversion failed on page %d: %v", page, err))
			s.cacheProgress(ctx, conv.ID, conv.DesignID, models.ConversionStatusFailed, page-1, pagesTotal, percent(page-1, pagesTotal))
			return fmt.Errorf("convert page %d: %w", page, err)
		}
		sections = append(sections, html)

		progress := percent(page, pagesTotal)
		if err := s.repo.UpdateProgress(ctx, conv.ID, page, progress); err != nil {
			s.logger.Warn("failed to persist conversion progress", zap.String("conversion_id", conv.ID), zap.Error(err))
		}
		s.cacheProgress(ctx, conv.ID, conv.DesignID, models.ConversionStatusProcessing, page, pagesTotal, progress)
	}

	title := payload.Title
	if strings.TrimSpace(title) == "" {
		title = design.Title
	}
	content := strings.Join(sections, "\n")

	doc, err := s.documents.CreateFromConversion(ctx, conv.CreatedBy, title, title, content, design.ID)
	if err != nil {
		_ = s.repo.MarkFailed(ctx, conv.ID, "failed to persist converted document")
		return fmt.Errorf("create document for conversion %s: %w", conv.ID, err)
	}

	if err := s.repo.MarkCompleted(ctx, conv.ID, doc.ID); err != nil {
		return err
	}
	s.cacheCompleted(ctx, conv.ID, conv.DesignID, doc.ID, pagesTotal)
	s.logger.Info("conversion completed",
		zap.String("conversion_id", conv.ID),
		zap.String("design_id", design.ID),
		zap.String("document_id", doc.ID),
		zap.Int("pages", pagesTotal))
	return nil
}

// RecoverPendingJobs replays interrupted jobs after a process restart.
func (s *ConversionService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover pending conversions", "error", err)
		return
	}
	for _, conv := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: conv.ID, Type: "conversion"}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue conversion", "conversion_id", conv.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges stale finished jobs periodically.
func (s *ConversionService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
				removed, err := s.repo.DeleteFinishedBefore(ctx, cutoff)
				if err != nil {
					s.logger.Sugar().Warnw("conversion cleanup failed", "error", err)
					continue
				}
				if removed > 0 {
					s.logger.Sugar().Infow("purged finished conversions", "count", removed)
				}
			}
		}
	}()
}

func (s *ConversionService) readDesignFile(design *models.Design) ([]byte, error) {
	file, err := s.storage.Open(design.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open design file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read design file: %w", err)
	}
	return data, nil
}

func (s *ConversionService) statusResponse(conv *models.Conversion) *dto.ConversionStatusResponse {
	return &dto.ConversionStatusResponse{
		ID:           conv.ID,
		DesignID:     conv.DesignID,
		DocumentID:   conv.DocumentID,
		Status:       conv.Status,
		Progress:     conv.Progress,
		PagesTotal:   conv.PagesTotal,
		PagesDone:    conv.PagesDone,
		ErrorMessage: conv.ErrorMessage,
	}
}

func (s *ConversionService) cacheProgress(ctx context.Context, id, designID string, status models.ConversionStatus, pagesDone, pagesTotal, progress int) {
	if s.cache == nil {
		return
	}
	resp := dto.ConversionStatusResponse{
		ID:         id,
		DesignID:   designID,
		Status:     status,
		Progress:   progress,
		PagesTotal: pagesTotal,
		PagesDone:  pagesDone,
	}
	if err := s.cache.Set(ctx, progressKey(id), resp, s.cfg.ProgressCacheTTL); err != nil {
		s.logger.Warn("failed to cache conversion progress", zap.Error(err))
	}
}

func (s *ConversionService) cacheCompleted(ctx context.Context, id, designID, documentID string, pagesTotal int) {
	if s.cache == nil {
		return
	}
	resp := dto.ConversionStatusResponse{
		ID:         id,
		DesignID:   designID,
		DocumentID: &documentID,
		Status:     models.ConversionStatusCompleted,
		Progress:   100,
		PagesTotal: pagesTotal,
		PagesDone:  pagesTotal,
	}
	if err := s.cache.Set(ctx, progressKey(id), resp, s.cfg.ProgressCacheTTL); err != nil {
		s.logger.Warn("failed to cache conversion result", zap.Error(err))
	}
}

func progressKey(id string) string {
	return "conversion:progress:" + id
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	p := done * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}
