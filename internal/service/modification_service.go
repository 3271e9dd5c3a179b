package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/ai"
	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	"github.com/emailgen-labs/emailgen-api/internal/patch"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
)

type modificationStore interface {
	Create(ctx context.Context, mod *models.Modification) error
	GetByID(ctx context.Context, id string) (*models.Modification, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Modification, error)
	UpdateStatus(ctx context.Context, id string, status models.ModificationStatus) error
}

type modificationDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	SaveNewVersion(ctx context.Context, doc *models.Document, comment, createdBy string) (int, error)
}

type editSuggester interface {
	SuggestEdit(ctx context.Context, document, instruction string) (*ai.Suggestion, error)
}

// ModificationService drives the propose/accept/revert edit workflow. The
// patch engine works on raw text so that apply and revert stay exact
// inverses of each other.
type ModificationService struct {
	repo      modificationStore
	documents modificationDocumentStore
	suggester editSuggester
	audit     auditLogger
	logger    *zap.Logger
}

// NewModificationService constructs the service.
func NewModificationService(repo modificationStore, documents modificationDocumentStore, suggester editSuggester, audit auditLogger, logger *zap.Logger) *ModificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModificationService{
		repo:      repo,
		documents: documents,
		suggester: suggester,
		audit:     audit,
		logger:    logger,
	}
}

// Propose asks the assistant for an edit suggestion and persists it.
func (s *ModificationService) Propose(ctx context.Context, documentID string, req dto.ProposeModificationRequest, actor *models.JWTClaims) (*dto.ModificationResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "instruction is required")
	}

	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	suggestion, err := s.suggester.SuggestEdit(ctx, doc.Content, req.Instruction)
	if err != nil {
		if errors.Is(err, ai.ErrMalformedSuggestion) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidSuggestion.Code, appErrors.ErrInvalidSuggestion.Status, "assistant returned an invalid suggestion")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "suggestion request failed")
	}

	change := suggestionChange(suggestion)
	if err := patch.Validate(change); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidSuggestion.Code, appErrors.ErrInvalidSuggestion.Status, "assistant returned an invalid suggestion")
	}

	mod := &models.Modification{
		DocumentID:   doc.ID,
		Description:  suggestion.Description,
		OriginalCode: suggestion.OriginalCode,
		NewCode:      suggestion.NewCode,
		StartLine:    suggestion.StartLine,
		EndLine:      suggestion.EndLine,
		StartCol:     suggestion.StartCol,
		EndCol:       suggestion.EndCol,
		Status:       models.ModificationStatusProposed,
		CreatedBy:    actor.UserID,
	}
	if err := s.repo.Create(ctx, mod); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist modification")
	}

	s.emitAudit(ctx, actor.UserID, mod.ID, "proposed")
	return &dto.ModificationResponse{Modification: *mod}, nil
}

// Accept applies a proposed or reverted modification to the document.
func (s *ModificationService) Accept(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ModificationResponse, error) {
	return s.transition(ctx, id, actor, models.ModificationStatusApplied)
}

// Revert undoes an applied modification.
func (s *ModificationService) Revert(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ModificationResponse, error) {
	return s.transition(ctx, id, actor, models.ModificationStatusReverted)
}

// Reject discards a proposed modification. Terminal.
func (s *ModificationService) Reject(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ModificationResponse, error) {
	return s.transition(ctx, id, actor, models.ModificationStatusRejected)
}

// Get returns one modification.
func (s *ModificationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Modification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	mod, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load modification")
	}
	return mod, nil
}

// ListByDocument returns the modification history for a document.
func (s *ModificationService) ListByDocument(ctx context.Context, documentID string, actor *models.JWTClaims) ([]models.Modification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.loadDocument(ctx, documentID); err != nil {
		return nil, err
	}
	mods, err := s.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modifications")
	}
	return mods, nil
}

func (s *ModificationService) transition(ctx context.Context, id string, actor *models.JWTClaims, target models.ModificationStatus) (*dto.ModificationResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleReviewer {
		return nil, appErrors.ErrForbidden
	}

	mod, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(mod.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move modification from %s to %s", mod.Status, target))
	}

	var content string
	switch target {
	case models.ModificationStatusApplied, models.ModificationStatusReverted:
		doc, err := s.loadDocument(ctx, mod.DocumentID)
		if err != nil {
			return nil, err
		}
		change := modificationChange(mod)
		if target == models.ModificationStatusApplied {
			doc.Content = patch.Apply(doc.Content, change)
		} else {
			doc.Content = patch.Revert(doc.Content, change)
		}
		comment := fmt.Sprintf("modification %s %s", mod.ID, strings.ToLower(string(target)))
		if _, err := s.documents.SaveNewVersion(ctx, doc, comment, actor.UserID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save modified document")
		}
		content = doc.Content
	case models.ModificationStatusRejected:
		// no document rewrite
	}

	if err := s.repo.UpdateStatus(ctx, mod.ID, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update modification status")
	}
	mod.Status = target

	s.emitAudit(ctx, actor.UserID, mod.ID, strings.ToLower(string(target)))
	return &dto.ModificationResponse{Modification: *mod, Content: content}, nil
}

func (s *ModificationService) loadDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return doc, nil
}

func (s *ModificationService) emitAudit(ctx context.Context, actorID, modID, state string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionModificationFlow,
		Resource:   "modification",
		ResourceID: &modID,
		NewValues:  []byte(fmt.Sprintf(`{"state":%q}`, state)),
	}); err != nil {
		s.logger.Warn("failed to record modification audit log", zap.Error(err))
	}
}

// transitionAllowed encodes the modification lifecycle: a proposal can be
// applied or rejected, an applied edit can be reverted, and a reverted edit
// can be applied again. Rejection is terminal.
func transitionAllowed(from, to models.ModificationStatus) bool {
	switch to {
	case models.ModificationStatusApplied:
		return from == models.ModificationStatusProposed || from == models.ModificationStatusReverted
	case models.ModificationStatusReverted:
		return from == models.ModificationStatusApplied
	case models.ModificationStatusRejected:
		return from == models.ModificationStatusProposed
	default:
		return false
	}
}

func suggestionChange(s *ai.Suggestion) patch.Change {
	return patch.Change{
		OriginalCode: s.OriginalCode,
		NewCode:      s.NewCode,
		StartLine:    s.StartLine,
		EndLine:      s.EndLine,
		StartCol:     s.StartCol,
		EndCol:       s.EndCol,
	}
}

func modificationChange(m *models.Modification) patch.Change {
	return patch.Change{
		OriginalCode: m.OriginalCode,
		NewCode:      m.NewCode,
		StartLine:    m.StartLine,
		EndLine:      m.EndLine,
		StartCol:     m.StartCol,
		EndCol:       m.EndCol,
	}
}
