package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/ai"
	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
)

type modificationRepoStub struct {
	mods    map[string]*models.Modification
	created []*models.Modification
}

func newModificationRepoStub() *modificationRepoStub {
	return &modificationRepoStub{mods: make(map[string]*models.Modification)}
}

func (s *modificationRepoStub) Create(ctx context.Context, mod *models.Modification) error {
	if mod.ID == "" {
		mod.ID = "mod-1"
	}
	s.mods[mod.ID] = mod
	s.created = append(s.created, mod)
	return nil
}

func (s *modificationRepoStub) GetByID(ctx context.Context, id string) (*models.Modification, error) {
	mod, ok := s.mods[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *mod
	return &copy, nil
}

func (s *modificationRepoStub) ListByDocument(ctx context.Context, documentID string) ([]models.Modification, error) {
	var out []models.Modification
	for _, m := range s.mods {
		if m.DocumentID == documentID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *modificationRepoStub) UpdateStatus(ctx context.Context, id string, status models.ModificationStatus) error {
	if mod, ok := s.mods[id]; ok {
		mod.Status = status
	}
	return nil
}

type modDocumentStoreStub struct {
	doc      *models.Document
	versions []string
}

func (s *modDocumentStoreStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *s.doc
	return &copy, nil
}

func (s *modDocumentStoreStub) SaveNewVersion(ctx context.Context, doc *models.Document, comment, createdBy string) (int, error) {
	s.doc.Content = doc.Content
	s.doc.CurrentVersion++
	s.versions = append(s.versions, doc.Content)
	return s.doc.CurrentVersion, nil
}

type suggesterStub struct {
	suggestion *ai.Suggestion
	err        error
}

func (s *suggesterStub) SuggestEdit(ctx context.Context, document, instruction string) (*ai.Suggestion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.suggestion, nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func editorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleEditor}
}

func TestModificationServicePropose(t *testing.T) {
	repo := newModificationRepoStub()
	docs := &modDocumentStoreStub{doc: &models.Document{ID: "doc-1", Content: "<p>old</p>", CurrentVersion: 1}}
	suggester := &suggesterStub{suggestion: &ai.Suggestion{
		Description:  "Swap the paragraph",
		OriginalCode: "<p>old</p>",
		NewCode:      "<p>new</p>",
		StartLine:    1,
		EndLine:      1,
	}}
	audit := &auditStub{}
	svc := NewModificationService(repo, docs, suggester, audit, zap.NewNop())

	resp, err := svc.Propose(context.Background(), "doc-1", dto.ProposeModificationRequest{Instruction: "swap it"}, editorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ModificationStatusProposed, resp.Modification.Status)
	assert.Len(t, repo.created, 1)
	assert.NotEmpty(t, audit.logs)
}

func TestModificationServiceProposeMalformedSuggestion(t *testing.T) {
	repo := newModificationRepoStub()
	docs := &modDocumentStoreStub{doc: &models.Document{ID: "doc-1", Content: "<p>old</p>", CurrentVersion: 1}}
	suggester := &suggesterStub{err: ai.ErrMalformedSuggestion}
	svc := NewModificationService(repo, docs, suggester, nil, zap.NewNop())

	_, err := svc.Propose(context.Background(), "doc-1", dto.ProposeModificationRequest{Instruction: "swap it"}, editorClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidSuggestion.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestModificationServiceAcceptThenRevert(t *testing.T) {
	doc := &models.Document{ID: "doc-1", CurrentVersion: 1, Content: strings.Join([]string{
		"<table>",
		"  <tr><td>Hello</td></tr>",
		"</table>",
	}, "\n")}
	repo := newModificationRepoStub()
	repo.mods["mod-1"] = &models.Modification{
		ID:           "mod-1",
		DocumentID:   "doc-1",
		OriginalCode: "  <tr><td>Hello</td></tr>",
		NewCode:      "  <tr><td>Hello</td></tr>\n  <tr><td>World</td></tr>",
		StartLine:    2,
		EndLine:      2,
		Status:       models.ModificationStatusProposed,
	}
	docs := &modDocumentStoreStub{doc: doc}
	svc := NewModificationService(repo, docs, &suggesterStub{}, nil, zap.NewNop())

	applied, err := svc.Accept(context.Background(), "mod-1", editorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ModificationStatusApplied, applied.Modification.Status)
	assert.Contains(t, applied.Content, "<td>World</td>")
	assert.Contains(t, applied.Content, "<td>Hello</td>")

	reverted, err := svc.Revert(context.Background(), "mod-1", editorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ModificationStatusReverted, reverted.Modification.Status)
	assert.NotContains(t, reverted.Content, "<td>World</td>")
	assert.Contains(t, reverted.Content, "<td>Hello</td>")

	// reverted edits can be applied again
	reapplied, err := svc.Accept(context.Background(), "mod-1", editorClaims())
	require.NoError(t, err)
	assert.Contains(t, reapplied.Content, "<td>World</td>")
}

func TestModificationServiceIllegalTransitions(t *testing.T) {
	repo := newModificationRepoStub()
	repo.mods["mod-1"] = &models.Modification{
		ID:           "mod-1",
		DocumentID:   "doc-1",
		OriginalCode: "a",
		NewCode:      "b",
		StartLine:    1,
		EndLine:      1,
		Status:       models.ModificationStatusProposed,
	}
	docs := &modDocumentStoreStub{doc: &models.Document{ID: "doc-1", Content: "a", CurrentVersion: 1}}
	svc := NewModificationService(repo, docs, &suggesterStub{}, nil, zap.NewNop())

	// cannot revert a proposal that was never applied
	_, err := svc.Revert(context.Background(), "mod-1", editorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// rejection is terminal
	_, err = svc.Reject(context.Background(), "mod-1", editorClaims())
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), "mod-1", editorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestModificationServiceReviewerForbidden(t *testing.T) {
	repo := newModificationRepoStub()
	docs := &modDocumentStoreStub{doc: &models.Document{ID: "doc-1", Content: "a", CurrentVersion: 1}}
	svc := NewModificationService(repo, docs, &suggesterStub{}, nil, zap.NewNop())

	reviewer := &models.JWTClaims{UserID: "user-2", Role: models.RoleReviewer}
	_, err := svc.Propose(context.Background(), "doc-1", dto.ProposeModificationRequest{Instruction: "x"}, reviewer)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
