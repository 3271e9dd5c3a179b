package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/middleware"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
	"github.com/emailgen-labs/emailgen-api/pkg/response"
)

type qaService interface {
	Run(ctx context.Context, documentID string, actor *models.JWTClaims) (*dto.QARunResponse, error)
	Latest(ctx context.Context, documentID string, actor *models.JWTClaims) (*dto.QARunResponse, bool, error)
	History(ctx context.Context, documentID string, actor *models.JWTClaims) ([]dto.QARunResponse, error)
	Report(ctx context.Context, documentID string, format dto.QAReportFormat, actor *models.JWTClaims) ([]byte, string, error)
}

// QAHandler exposes QA check endpoints.
type QAHandler struct {
	service qaService
}

// NewQAHandler constructs the handler.
func NewQAHandler(service qaService) *QAHandler {
	return &QAHandler{service: service}
}

// Run godoc
// @Summary Run QA checks against the current document version
// @Tags QA
// @Produce json
// @Param id path string true "Document ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/qa/runs [post]
func (h *QAHandler) Run(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	run, err := h.service.Run(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, run, nil)
}

// Latest godoc
// @Summary Latest QA run for a document
// @Tags QA
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/qa/latest [get]
func (h *QAHandler) Latest(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start := time.Now()
	run, cacheHit, err := h.service.Latest(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, run, nil, meta)
}

// History godoc
// @Summary QA run history for a document
// @Tags QA
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/qa/runs [get]
func (h *QAHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	runs, err := h.service.History(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, nil)
}

// Report godoc
// @Summary Export the latest QA run as CSV or PDF
// @Tags QA
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param format query string false "Report format (csv or pdf)"
// @Success 200 {file} binary
// @Router /documents/{id}/qa/report [get]
func (h *QAHandler) Report(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := dto.QAReportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	switch format {
	case dto.QAReportFormatCSV, dto.QAReportFormatPDF:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	data, contentType, err := h.service.Report(c.Request.Context(), c.Param("id"), format, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"qa-report.%s\"", format))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, data)
}
