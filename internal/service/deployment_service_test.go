package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	"github.com/emailgen-labs/emailgen-api/internal/platform"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
	"github.com/emailgen-labs/emailgen-api/pkg/jobs"
)

type deploymentRepoStub struct {
	deps map[string]*models.Deployment
}

func newDeploymentRepoStub() *deploymentRepoStub {
	return &deploymentRepoStub{deps: make(map[string]*models.Deployment)}
}

func (s *deploymentRepoStub) Create(ctx context.Context, dep *models.Deployment) error {
	if dep.ID == "" {
		dep.ID = "dep-1"
	}
	s.deps[dep.ID] = dep
	return nil
}

func (s *deploymentRepoStub) GetByID(ctx context.Context, id string) (*models.Deployment, error) {
	dep, ok := s.deps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *dep
	return &out, nil
}

func (s *deploymentRepoStub) ListByDocument(ctx context.Context, documentID string) ([]models.Deployment, error) {
	var out []models.Deployment
	for _, d := range s.deps {
		if d.DocumentID == documentID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *deploymentRepoStub) MarkProcessing(ctx context.Context, id string) error {
	s.deps[id].Status = models.DeploymentStatusProcessing
	return nil
}

func (s *deploymentRepoStub) MarkSucceeded(ctx context.Context, id, assetID string) error {
	s.deps[id].Status = models.DeploymentStatusSucceeded
	s.deps[id].PlatformAssetID = &assetID
	return nil
}

func (s *deploymentRepoStub) MarkFailed(ctx context.Context, id, message string) error {
	s.deps[id].Status = models.DeploymentStatusFailed
	s.deps[id].ErrorMessage = &message
	return nil
}

type deployDocStoreStub struct {
	doc      *models.Document
	versions map[int]*models.DocumentVersion
}

func (s *deployDocStoreStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	out := *s.doc
	return &out, nil
}

func (s *deployDocStoreStub) GetVersion(ctx context.Context, documentID string, version int) (*models.DocumentVersion, error) {
	ver, ok := s.versions[version]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *ver
	return &out, nil
}

type gateStub struct {
	err error
}

func (s *gateStub) GateDeployment(ctx context.Context, documentID string, version int) error {
	return s.err
}

type publisherStub struct {
	asset *platform.Asset
	err   error
	calls int
}

func (s *publisherStub) CreateEmailAsset(ctx context.Context, name, subject, html string) (*platform.Asset, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.asset, nil
}

func deployFixture() (*deploymentRepoStub, *deployDocStoreStub) {
	repo := newDeploymentRepoStub()
	docs := &deployDocStoreStub{
		doc: &models.Document{ID: "doc-1", Title: "Spring", Subject: "Deals", CurrentVersion: 2},
		versions: map[int]*models.DocumentVersion{
			1: {DocumentID: "doc-1", Version: 1, Content: "<html>v1</html>"},
			2: {DocumentID: "doc-1", Version: 2, Content: "<html>v2</html>"},
		},
	}
	return repo, docs
}

func TestDeploymentServiceCreateDefaultsToCurrentVersion(t *testing.T) {
	repo, docs := deployFixture()
	queue := &queueStub{}
	svc := NewDeploymentService(repo, docs, &gateStub{}, &publisherStub{}, queue, nil, zap.NewNop())

	resp, err := svc.Create(context.Background(), dto.CreateDeploymentRequest{DocumentID: "doc-1"}, editorClaims())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Version)
	assert.Equal(t, models.DeploymentStatusQueued, resp.Status)
	require.Len(t, queue.jobs, 1)
}

func TestDeploymentServiceCreateQABlocked(t *testing.T) {
	repo, docs := deployFixture()
	gate := &gateStub{err: appErrors.Clone(appErrors.ErrQABlocked, "document has blocking qa findings")}
	svc := NewDeploymentService(repo, docs, gate, &publisherStub{}, &queueStub{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), dto.CreateDeploymentRequest{DocumentID: "doc-1"}, editorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrQABlocked.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deps)
}

func TestDeploymentServiceProcessSuccess(t *testing.T) {
	repo, docs := deployFixture()
	repo.deps["dep-1"] = &models.Deployment{ID: "dep-1", DocumentID: "doc-1", Version: 2, Status: models.DeploymentStatusQueued}
	publisher := &publisherStub{asset: &platform.Asset{ID: "asset-42", Name: "Spring-v2"}}
	svc := NewDeploymentService(repo, docs, &gateStub{}, publisher, &queueStub{}, nil, zap.NewNop())

	require.NoError(t, svc.Process(context.Background(), jobs.Job{ID: "dep-1"}))

	dep := repo.deps["dep-1"]
	assert.Equal(t, models.DeploymentStatusSucceeded, dep.Status)
	require.NotNil(t, dep.PlatformAssetID)
	assert.Equal(t, "asset-42", *dep.PlatformAssetID)
	assert.Equal(t, 1, publisher.calls)
}

func TestDeploymentServiceProcessPublishFailure(t *testing.T) {
	repo, docs := deployFixture()
	repo.deps["dep-1"] = &models.Deployment{ID: "dep-1", DocumentID: "doc-1", Version: 2, Status: models.DeploymentStatusQueued}
	publisher := &publisherStub{err: context.DeadlineExceeded}
	svc := NewDeploymentService(repo, docs, &gateStub{}, publisher, &queueStub{}, nil, zap.NewNop())

	err := svc.Process(context.Background(), jobs.Job{ID: "dep-1"})
	require.Error(t, err)
	assert.Equal(t, models.DeploymentStatusFailed, repo.deps["dep-1"].Status)
}

func TestDeploymentServiceProcessIdempotentWhenSucceeded(t *testing.T) {
	repo, docs := deployFixture()
	assetID := "asset-42"
	repo.deps["dep-1"] = &models.Deployment{ID: "dep-1", DocumentID: "doc-1", Version: 2, Status: models.DeploymentStatusSucceeded, PlatformAssetID: &assetID}
	publisher := &publisherStub{}
	svc := NewDeploymentService(repo, docs, &gateStub{}, publisher, &queueStub{}, nil, zap.NewNop())

	require.NoError(t, svc.Process(context.Background(), jobs.Job{ID: "dep-1"}))
	assert.Zero(t, publisher.calls)
}
