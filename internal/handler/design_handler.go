package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	"github.com/emailgen-labs/emailgen-api/internal/service"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
	"github.com/emailgen-labs/emailgen-api/pkg/response"
)

type designService interface {
	Upload(ctx context.Context, meta dto.CreateDesignRequest, upload service.DesignUpload, actor *models.JWTClaims) (*models.Design, error)
	List(ctx context.Context, filter dto.DesignFilter, actor *models.JWTClaims) ([]models.Design, *models.Pagination, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Design, error)
	GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error)
	Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*service.DesignDownload, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// DesignHandler manages design upload and download endpoints.
type DesignHandler struct {
	service designService
}

// NewDesignHandler constructs the handler.
func NewDesignHandler(service designService) *DesignHandler {
	return &DesignHandler{service: service}
}

// Upload godoc
// @Summary Upload design file
// @Tags Designs
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param file formData file true "Design file (PNG, JPEG, WEBP or PDF)"
// @Success 201 {object} response.Envelope
// @Router /designs [post]
func (h *DesignHandler) Upload(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "design service not configured"))
		return
	}
	var req dto.CreateDesignRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid design payload"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	upload := service.DesignUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	}
	design, err := h.service.Upload(c.Request.Context(), req, upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, design, nil)
}

// List godoc
// @Summary List designs
// @Tags Designs
// @Produce json
// @Param search query string false "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /designs [get]
func (h *DesignHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "design service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := dto.DesignFilter{Search: strings.TrimSpace(c.Query("search"))}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	designs, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, designs, pagination)
}

// Get godoc
// @Summary Get design metadata with signed download URL
// @Tags Designs
// @Produce json
// @Param id path string true "Design ID"
// @Success 200 {object} response.Envelope
// @Router /designs/{id} [get]
func (h *DesignHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "design service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	design, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	downloadURL, err := h.service.GetDownloadURL(c.Request.Context(), design.ID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DesignResponse{
		ID:          design.ID,
		Title:       design.Title,
		Kind:        string(design.Kind),
		Filename:    design.Filename,
		MimeType:    design.MimeType,
		SizeBytes:   design.SizeBytes,
		PageCount:   design.PageCount,
		DownloadURL: downloadURL,
		CreatedAt:   design.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil)
}

// Download godoc
// @Summary Download design file via signed token
// @Tags Designs
// @Produce octet-stream
// @Param id path string true "Design ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /designs/{id}/download [get]
func (h *DesignHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "design service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), c.Param("id"), token, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

// Delete godoc
// @Summary Soft delete a design
// @Tags Designs
// @Produce json
// @Param id path string true "Design ID"
// @Success 204
// @Router /designs/{id} [delete]
func (h *DesignHandler) Delete(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "design service not configured"))
		return
	}
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
