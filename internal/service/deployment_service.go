package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	"github.com/emailgen-labs/emailgen-api/internal/platform"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
	"github.com/emailgen-labs/emailgen-api/pkg/jobs"
)

type deploymentStore interface {
	Create(ctx context.Context, dep *models.Deployment) error
	GetByID(ctx context.Context, id string) (*models.Deployment, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Deployment, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkSucceeded(ctx context.Context, id, assetID string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type deploymentDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetVersion(ctx context.Context, documentID string, version int) (*models.DocumentVersion, error)
}

type deploymentGate interface {
	GateDeployment(ctx context.Context, documentID string, version int) error
}

type assetPublisher interface {
	CreateEmailAsset(ctx context.Context, name, subject, html string) (*platform.Asset, error)
}

// DeploymentService pushes approved document versions to the marketing
// platform. Every deployment is QA-gated.
type DeploymentService struct {
	repo      deploymentStore
	documents deploymentDocumentStore
	gate      deploymentGate
	publisher assetPublisher
	queue     jobDispatcher
	audit     auditLogger
	logger    *zap.Logger
}

// NewDeploymentService constructs the service.
func NewDeploymentService(repo deploymentStore, documents deploymentDocumentStore, gate deploymentGate, publisher assetPublisher, queue jobDispatcher, audit auditLogger, logger *zap.Logger) *DeploymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeploymentService{
		repo:      repo,
		documents: documents,
		gate:      gate,
		publisher: publisher,
		queue:     queue,
		audit:     audit,
		logger:    logger,
	}
}

// Create validates the QA gate, persists the deployment, and enqueues it.
func (s *DeploymentService) Create(ctx context.Context, req dto.CreateDeploymentRequest, actor *models.JWTClaims) (*dto.DeploymentResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}

	doc, err := s.documents.GetByID(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}

	version := req.Version
	if version == 0 {
		version = doc.CurrentVersion
	}
	if _, err := s.documents.GetVersion(ctx, doc.ID, version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}

	if err := s.gate.GateDeployment(ctx, doc.ID, version); err != nil {
		return nil, err
	}

	dep := &models.Deployment{
		DocumentID: doc.ID,
		Version:    version,
		Status:     models.DeploymentStatusQueued,
		CreatedBy:  actor.UserID,
	}
	if err := s.repo.Create(ctx, dep); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create deployment")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: dep.ID, Type: "deployment"}); err != nil {
		_ = s.repo.MarkFailed(ctx, dep.ID, "failed to enqueue deployment")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue deployment")
	}

	s.emitAudit(ctx, actor.UserID, dep.ID, doc.ID, version)
	return deploymentResponse(dep), nil
}

// GetStatus returns deployment state.
func (s *DeploymentService) GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DeploymentResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	dep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deployment")
	}
	return deploymentResponse(dep), nil
}

// ListByDocument returns deployment history for a document.
func (s *DeploymentService) ListByDocument(ctx context.Context, documentID string, actor *models.JWTClaims) ([]dto.DeploymentResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	deps, err := s.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deployments")
	}
	out := make([]dto.DeploymentResponse, 0, len(deps))
	for i := range deps {
		out = append(out, *deploymentResponse(&deps[i]))
	}
	return out, nil
}

// Process is the queue handler pushing one deployment to the platform.
func (s *DeploymentService) Process(ctx context.Context, job jobs.Job) error {
	dep, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load deployment %s: %w", job.ID, err)
	}
	if dep.Status == models.DeploymentStatusSucceeded {
		return nil
	}

	doc, err := s.documents.GetByID(ctx, dep.DocumentID)
	if err != nil {
		_ = s.repo.MarkFailed(ctx, dep.ID, "document no longer available")
		return fmt.Errorf("load document %s: %w", dep.DocumentID, err)
	}
	ver, err := s.documents.GetVersion(ctx, dep.DocumentID, dep.Version)
	if err != nil {
		_ = s.repo.MarkFailed(ctx, dep.ID, "version no longer available")
		return fmt.Errorf("load version %d: %w", dep.Version, err)
	}

	if err := s.repo.MarkProcessing(ctx, dep.ID); err != nil {
		return err
	}

	name := fmt.Sprintf("%s-v%d", doc.Title, dep.Version)
	asset, err := s.publisher.CreateEmailAsset(ctx, name, doc.Subject, ver.Content)
	if err != nil {
		_ = s.repo.MarkFailed(ctx, dep.ID, err.Error())
		return fmt.Errorf("publish asset for deployment %s: %w", dep.ID, err)
	}

	if err := s.repo.MarkSucceeded(ctx, dep.ID, asset.ID); err != nil {
		return err
	}
	s.logger.Info("deployment succeeded",
		zap.String("deployment_id", dep.ID),
		zap.String("document_id", dep.DocumentID),
		zap.Int("version", dep.Version),
		zap.String("asset_id", asset.ID))
	return nil
}

func (s *DeploymentService) emitAudit(ctx context.Context, actorID, depID, documentID string, version int) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDeploymentCreate,
		Resource:   "deployment",
		ResourceID: &depID,
		NewValues:  []byte(fmt.Sprintf(`{"document_id":%q,"version":%d}`, documentID, version)),
	}); err != nil {
		s.logger.Warn("failed to record deployment audit log", zap.Error(err))
	}
}

func deploymentResponse(dep *models.Deployment) *dto.DeploymentResponse {
	return &dto.DeploymentResponse{
		ID:              dep.ID,
		DocumentID:      dep.DocumentID,
		Version:         dep.Version,
		Status:          dep.Status,
		PlatformAssetID: dep.PlatformAssetID,
		ErrorMessage:    dep.ErrorMessage,
	}
}
