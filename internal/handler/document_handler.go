package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
	"github.com/emailgen-labs/emailgen-api/pkg/response"
)

type documentService interface {
	Create(ctx context.Context, req dto.CreateDocumentRequest, actor *models.JWTClaims) (*models.Document, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Document, error)
	List(ctx context.Context, filter dto.DocumentFilter, actor *models.JWTClaims) ([]models.Document, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.UpdateDocumentRequest, actor *models.JWTClaims) (*models.Document, error)
	ListVersions(ctx context.Context, id string, actor *models.JWTClaims) ([]models.DocumentVersion, error)
	GetVersion(ctx context.Context, id string, version int, actor *models.JWTClaims) (*models.DocumentVersion, error)
	RestoreVersion(ctx context.Context, id string, req dto.RestoreVersionRequest, actor *models.JWTClaims) (*models.Document, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// DocumentHandler exposes HTML email document endpoints.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Create godoc
// @Summary Create a document from raw HTML
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body dto.CreateDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}
	doc, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, doc, nil)
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := dto.DocumentFilter{Search: strings.TrimSpace(c.Query("search"))}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	docs, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Get godoc
// @Summary Get document with current content
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Update godoc
// @Summary Save document content as a new version
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}
	doc, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// ListVersions godoc
// @Summary List document version history
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/versions [get]
func (h *DocumentHandler) ListVersions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	versions, err := h.service.ListVersions(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// GetVersion godoc
// @Summary Get a specific document version with content
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Param version path int true "Version number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/versions/{version} [get]
func (h *DocumentHandler) GetVersion(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "version must be a positive integer"))
		return
	}
	ver, err := h.service.GetVersion(c.Request.Context(), c.Param("id"), version, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ver, nil)
}

// Restore godoc
// @Summary Restore an earlier version as a new head version
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.RestoreVersionRequest true "Restore payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/restore [post]
func (h *DocumentHandler) Restore(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RestoreVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid restore payload"))
		return
	}
	doc, err := h.service.RestoreVersion(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Soft delete a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
