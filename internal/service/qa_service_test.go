package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	"github.com/emailgen-labs/emailgen-api/internal/qa"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
)

type qaRepoStub struct {
	runs []*models.QARun
}

func (s *qaRepoStub) Create(ctx context.Context, run *models.QARun) error {
	if run.ID == "" {
		run.ID = "run-1"
	}
	run.CreatedAt = time.Now().UTC()
	s.runs = append(s.runs, run)
	return nil
}

func (s *qaRepoStub) GetLatest(ctx context.Context, documentID string, version int) (*models.QARun, error) {
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].DocumentID == documentID && s.runs[i].Version == version {
			out := *s.runs[i]
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *qaRepoStub) ListByDocument(ctx context.Context, documentID string) ([]models.QARun, error) {
	var out []models.QARun
	for _, r := range s.runs {
		if r.DocumentID == documentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type qaDocStub struct {
	doc *models.Document
}

func (s *qaDocStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	out := *s.doc
	return &out, nil
}

const passingEmail = `<html><body>
<table width="580"><tr><td><img src="https://cdn.example.com/x.png" alt="Logo"></td></tr></table>
<span style="display:none">Preview text</span>
<a href="https://example.com/unsubscribe">Unsubscribe</a>
</body></html>`

const blockedEmail = `<html><body>
<table width="580"><tr><td>No way out</td></tr></table>
</body></html>`

func TestQAServiceRunPasses(t *testing.T) {
	repo := &qaRepoStub{}
	docs := &qaDocStub{doc: &models.Document{ID: "doc-1", CurrentVersion: 2, Content: passingEmail}}
	svc := NewQAService(repo, docs, qa.NewChecker(0), nil, zap.NewNop(), QAServiceConfig{})

	resp, err := svc.Run(context.Background(), "doc-1", editorClaims())
	require.NoError(t, err)
	assert.True(t, resp.Passed)
	assert.Equal(t, 2, resp.Version)
	require.Len(t, repo.runs, 1)
}

func TestQAServiceRunBlockingFinding(t *testing.T) {
	repo := &qaRepoStub{}
	docs := &qaDocStub{doc: &models.Document{ID: "doc-1", CurrentVersion: 1, Content: blockedEmail}}
	svc := NewQAService(repo, docs, qa.NewChecker(0), nil, zap.NewNop(), QAServiceConfig{})

	resp, err := svc.Run(context.Background(), "doc-1", editorClaims())
	require.NoError(t, err)
	assert.False(t, resp.Passed)

	var rules []string
	for _, f := range resp.Findings {
		rules = append(rules, f.Rule)
	}
	assert.Contains(t, rules, "missing-unsubscribe")
}

func TestQAServiceGateDeployment(t *testing.T) {
	repo := &qaRepoStub{}
	docs := &qaDocStub{doc: &models.Document{ID: "doc-1", CurrentVersion: 1, Content: blockedEmail}}
	svc := NewQAService(repo, docs, qa.NewChecker(0), nil, zap.NewNop(), QAServiceConfig{})

	// no run yet
	err := svc.GateDeployment(context.Background(), "doc-1", 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrQABlocked.Code, appErrors.FromError(err).Code)

	_, err = svc.Run(context.Background(), "doc-1", editorClaims())
	require.NoError(t, err)

	// failing run still blocks
	err = svc.GateDeployment(context.Background(), "doc-1", 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrQABlocked.Code, appErrors.FromError(err).Code)

	docs.doc.Content = passingEmail
	_, err = svc.Run(context.Background(), "doc-1", editorClaims())
	require.NoError(t, err)
	require.NoError(t, svc.GateDeployment(context.Background(), "doc-1", 1))
}

func TestQAServiceReportCSV(t *testing.T) {
	repo := &qaRepoStub{}
	docs := &qaDocStub{doc: &models.Document{ID: "doc-1", CurrentVersion: 1, Content: blockedEmail}}
	svc := NewQAService(repo, docs, qa.NewChecker(0), nil, zap.NewNop(), QAServiceConfig{})

	_, err := svc.Run(context.Background(), "doc-1", editorClaims())
	require.NoError(t, err)

	data, contentType, err := svc.Report(context.Background(), "doc-1", dto.QAReportFormatCSV, editorClaims())
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "Rule,Severity,Message,Line")
	assert.Contains(t, string(data), "missing-unsubscribe")
}

func TestQAServiceReportPDF(t *testing.T) {
	repo := &qaRepoStub{}
	docs := &qaDocStub{doc: &models.Document{ID: "doc-1", CurrentVersion: 1, Content: blockedEmail}}
	svc := NewQAService(repo, docs, qa.NewChecker(0), nil, zap.NewNop(), QAServiceConfig{})

	_, err := svc.Run(context.Background(), "doc-1", editorClaims())
	require.NoError(t, err)

	data, contentType, err := svc.Report(context.Background(), "doc-1", dto.QAReportFormatPDF, editorClaims())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestQAServiceReportUnsupportedFormat(t *testing.T) {
	repo := &qaRepoStub{}
	docs := &qaDocStub{doc: &models.Document{ID: "doc-1", CurrentVersion: 1, Content: blockedEmail}}
	svc := NewQAService(repo, docs, qa.NewChecker(0), nil, zap.NewNop(), QAServiceConfig{})

	_, err := svc.Run(context.Background(), "doc-1", editorClaims())
	require.NoError(t, err)

	_, _, err = svc.Report(context.Background(), "doc-1", dto.QAReportFormat("xlsx"), editorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
