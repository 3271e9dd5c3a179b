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

type conversionService interface {
	Create(ctx context.Context, req dto.CreateConversionRequest, actor *models.JWTClaims) (*dto.ConversionStatusResponse, error)
	GetStatus(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ConversionStatusResponse, error)
}

// ConversionHandler exposes conversion job endpoints.
type ConversionHandler struct {
	service conversionService
}

// NewConversionHandler constructs the handler.
func NewConversionHandler(service conversionService) *ConversionHandler {
	return &ConversionHandler{service: service}
}

// Create godoc
// @Summary Start a design-to-email conversion
// @Tags Conversions
// @Accept json
// @Produce json
// @Param payload body dto.CreateConversionRequest true "Conversion payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /conversions [post]
func (h *ConversionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conversion payload"))
		return
	}
	status, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, status, nil)
}

// GetStatus godoc
// @Summary Poll conversion progress
// @Tags Conversions
// @Produce json
// @Param id path string true "Conversion ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /conversions/{id} [get]
func (h *ConversionHandler) GetStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
