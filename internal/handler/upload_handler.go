package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eligibility-report-api/internal/models"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
	"github.com/noah-isme/eligibility-report-api/pkg/response"
)

const uploadFormField = "file"

type ingestService interface {
	IngestCSV(ctx context.Context, r io.Reader) (*models.IngestResult, error)
}

// UploadHandler accepts learner CSV uploads.
type UploadHandler struct {
	service  ingestService
	maxBytes int64
}

// NewUploadHandler constructs the handler. maxBytes bounds the whole multipart body.
func NewUploadHandler(service ingestService, maxBytes int64) *UploadHandler {
	return &UploadHandler{service: service, maxBytes: maxBytes}
}

// Upload godoc
// @Summary Ingest a learner CSV
// @Description Evaluates every row against the course criteria. Rows without learner code and name are skipped and reported.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV export with one row per learner"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "ingest service not configured"))
		return
	}
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	fileHeader, err := c.FormFile(uploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxBytes)))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != "" && ext != ".csv" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "only CSV files are supported"))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.service.IngestCSV(c.Request.Context(), src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{
		"filename": fileHeader.Filename,
		"accepted": result.Accepted,
		"skipped":  result.Skipped,
	})
}
