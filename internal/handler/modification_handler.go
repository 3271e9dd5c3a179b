package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
	"github.com/emailgen-labs/emailgen-api/pkg/response"
)

type modificationService interface {
	Propose(ctx context.Context, documentID string, req dto.ProposeModificationRequest, actor *models.JWTClaims) (*dto.ModificationResponse, error)
	Accept(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ModificationResponse, error)
	Revert(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ModificationResponse, error)
	Reject(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ModificationResponse, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Modification, error)
	ListByDocument(ctx context.Context, documentID string, actor *models.JWTClaims) ([]models.Modification, error)
}

// ModificationHandler exposes assistant-suggested edit endpoints.
type ModificationHandler struct {
	service modificationService
}

// NewModificationHandler constructs the handler.
func NewModificationHandler(service modificationService) *ModificationHandler {
	return &ModificationHandler{service: service}
}

// Propose godoc
// @Summary Request an assistant edit suggestion for a document
// @Tags Modifications
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.ProposeModificationRequest true "Instruction payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /documents/{id}/modifications [post]
func (h *ModificationHandler) Propose(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ProposeModificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid modification payload"))
		return
	}
	res, err := h.service.Propose(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, res, nil)
}

// ListByDocument godoc
// @Summary List modifications for a document
// @Tags Modifications
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/modifications [get]
func (h *ModificationHandler) ListByDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	mods, err := h.service.ListByDocument(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mods, nil)
}

// Get godoc
// @Summary Get modification detail
// @Tags Modifications
// @Produce json
// @Param id path string true "Modification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /modifications/{id} [get]
func (h *ModificationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	mod, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mod, nil)
}

// Accept godoc
// @Summary Apply a proposed modification to the document
// @Tags Modifications
// @Produce json
// @Param id path string true "Modification ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /modifications/{id}/accept [post]
func (h *ModificationHandler) Accept(c *gin.Context) {
	h.transition(c, h.service.Accept)
}

// Revert godoc
// @Summary Revert an applied modification
// @Tags Modifications
// @Produce json
// @Param id path string true "Modification ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /modifications/{id}/revert [post]
func (h *ModificationHandler) Revert(c *gin.Context) {
	h.transition(c, h.service.Revert)
}

// Reject godoc
// @Summary Reject a proposed modification
// @Tags Modifications
// @Produce json
// @Param id path string true "Modification ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /modifications/{id}/reject [post]
func (h *ModificationHandler) Reject(c *gin.Context) {
	h.transition(c, h.service.Reject)
}

func (h *ModificationHandler) transition(c *gin.Context, fn func(context.Context, string, *models.JWTClaims) (*dto.ModificationResponse, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := fn(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
