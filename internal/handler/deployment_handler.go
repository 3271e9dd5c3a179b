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

type deploymentService interface {
	Create(ctx context.Context, req dto.CreateDeploymentRequest, actor *models.JWTClaims) (*dto.DeploymentResponse, error)
	GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DeploymentResponse, error)
	ListByDocument(ctx context.Context, documentID string, actor *models.JWTClaims) ([]dto.DeploymentResponse, error)
}

// DeploymentHandler exposes deployment endpoints.
type DeploymentHandler struct {
	service deploymentService
}

// NewDeploymentHandler constructs the handler.
func NewDeploymentHandler(service deploymentService) *DeploymentHandler {
	return &DeploymentHandler{service: service}
}

// Create godoc
// @Summary Deploy a document version to the marketing platform
// @Tags Deployments
// @Accept json
// @Produce json
// @Param payload body dto.CreateDeploymentRequest true "Deployment payload"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /deployments [post]
func (h *DeploymentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deployment payload"))
		return
	}
	dep, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, dep, nil)
}

// GetStatus godoc
// @Summary Poll deployment status
// @Tags Deployments
// @Produce json
// @Param id path string true "Deployment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /deployments/{id} [get]
func (h *DeploymentHandler) GetStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	dep, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dep, nil)
}

// ListByDocument godoc
// @Summary List deployments for a document
// @Tags Deployments
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/deployments [get]
func (h *DeploymentHandler) ListByDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	deps, err := h.service.ListByDocument(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deps, nil)
}
