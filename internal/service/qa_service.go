package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	"github.com/emailgen-labs/emailgen-api/internal/qa"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
	"github.com/emailgen-labs/emailgen-api/pkg/export"
)

type qaRunStore interface {
	Create(ctx context.Context, run *models.QARun) error
	GetLatest(ctx context.Context, documentID string, version int) (*models.QARun, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.QARun, error)
}

type qaDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

type qaMetricsRecorder interface {
	ObserveQARun()
	ObserveQAFinding(rule, severity string)
}

// QAServiceConfig governs result caching.
type QAServiceConfig struct {
	CacheTTL time.Duration
}

// QAService runs the rule set against document versions and renders reports.
type QAService struct {
	repo      qaRunStore
	documents qaDocumentStore
	checker   *qa.Checker
	cache     progressCache
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	metrics   qaMetricsRecorder
	logger    *zap.Logger
	cfg       QAServiceConfig
}

// SetMetrics attaches an optional metrics recorder.
func (s *QAService) SetMetrics(m qaMetricsRecorder) {
	s.metrics = m
}

// NewQAService constructs the service.
func NewQAService(repo qaRunStore, documents qaDocumentStore, checker *qa.Checker, cache progressCache, logger *zap.Logger, cfg QAServiceConfig) *QAService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checker == nil {
		checker = qa.NewChecker(0)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &QAService{
		repo:      repo,
		documents: documents,
		checker:   checker,
		cache:     cache,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		cfg:       cfg,
	}
}

// Run executes all rules against the document's current version.
func (s *QAService) Run(ctx context.Context, documentID string, actor *models.JWTClaims) (*dto.QARunResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}

	findings := s.checker.Check(doc.Content)
	payload, err := json.Marshal(findings)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode findings")
	}

	run := &models.QARun{
		DocumentID: doc.ID,
		Version:    doc.CurrentVersion,
		Passed:     qa.Passed(findings),
		Findings:   payload,
		RunBy:      actor.UserID,
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist qa run")
	}

	if s.metrics != nil {
		s.metrics.ObserveQARun()
		for _, f := range findings {
			s.metrics.ObserveQAFinding(f.Rule, string(f.Severity))
		}
	}

	resp := runResponse(run, findings)
	if s.cache != nil {
		if err := s.cache.Set(ctx, qaCacheKey(doc.ID, doc.CurrentVersion), resp, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache qa run", zap.Error(err))
		}
	}
	return resp, nil
}

// Latest returns the most recent run for a document's current version,
// preferring the cache. The bool reports whether the cache served it.
func (s *QAService) Latest(ctx context.Context, documentID string, actor *models.JWTClaims) (*dto.QARunResponse, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	if s.cache != nil {
		var cached dto.QARunResponse
		if err := s.cache.Get(ctx, qaCacheKey(doc.ID, doc.CurrentVersion), &cached); err == nil {
			return &cached, true, nil
		}
	}

	run, err := s.repo.GetLatest(ctx, doc.ID, doc.CurrentVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "no qa run for current version")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qa run")
	}

	findings, err := decodeFindings(run.Findings)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode findings")
	}
	return runResponse(run, findings), false, nil
}

// History returns all runs for a document.
func (s *QAService) History(ctx context.Context, documentID string, actor *models.JWTClaims) ([]dto.QARunResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	runs, err := s.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list qa runs")
	}
	out := make([]dto.QARunResponse, 0, len(runs))
	for i := range runs {
		findings, err := decodeFindings(runs[i].Findings)
		if err != nil {
			s.logger.Warn("skipping qa run with undecodable findings", zap.String("run_id", runs[i].ID), zap.Error(err))
			continue
		}
		out = append(out, *runResponse(&runs[i], findings))
	}
	return out, nil
}

// GateDeployment returns an error unless the current version has a passing
// run. Blocking findings stop deployment; warnings do not.
func (s *QAService) GateDeployment(ctx context.Context, documentID string, version int) error {
	run, err := s.repo.GetLatest(ctx, documentID, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrQABlocked, "run qa checks before deploying")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qa run")
	}
	if !run.Passed {
		return appErrors.Clone(appErrors.ErrQABlocked, "document has blocking qa findings")
	}
	return nil
}

// Report renders the latest run as CSV or PDF.
func (s *QAService) Report(ctx context.Context, documentID string, format dto.QAReportFormat, actor *models.JWTClaims) ([]byte, string, error) {
	resp, _, err := s.Latest(ctx, documentID, actor)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Rule", "Severity", "Message", "Line"},
	}
	for _, f := range resp.Findings {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Rule":     f.Rule,
			"Severity": string(f.Severity),
			"Message":  f.Message,
			"Line":     fmt.Sprintf("%d", f.Line),
		})
	}

	switch format {
	case dto.QAReportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return data, "text/csv", nil
	case dto.QAReportFormatPDF:
		title := fmt.Sprintf("QA Report %s v%d", documentID, resp.Version)
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
}

func runResponse(run *models.QARun, findings []models.QAFinding) *dto.QARunResponse {
	return &dto.QARunResponse{
		ID:         run.ID,
		DocumentID: run.DocumentID,
		Version:    run.Version,
		Passed:     run.Passed,
		Findings:   findings,
		CreatedAt:  run.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeFindings(raw []byte) ([]models.QAFinding, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var findings []models.QAFinding
	if err := json.Unmarshal(raw, &findings); err != nil {
		return nil, err
	}
	return findings, nil
}

func qaCacheKey(documentID string, version int) string {
	return fmt.Sprintf("qa:run:%s:%d", documentID, version)
}
