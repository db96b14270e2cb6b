package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eligibility-report-api/internal/dto"
	"github.com/noah-isme/eligibility-report-api/internal/middleware"
	"github.com/noah-isme/eligibility-report-api/internal/models"
	"github.com/noah-isme/eligibility-report-api/internal/service"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
	"github.com/noah-isme/eligibility-report-api/pkg/response"
)

type reportService interface {
	SaveReport(ctx context.Context, req dto.SaveReportRequest) (*dto.SaveReportResponse, error)
	ListReports(ctx context.Context) ([]models.ReportKey, error)
	ListCenters(ctx context.Context) ([]models.CenterReports, error)
	GetReport(ctx context.Context, key models.ReportKey) (*models.Report, error)
}

type exportService interface {
	Export(ctx context.Context, key models.ReportKey, format models.ReportFormat) (*service.ExportFile, error)
}

type accessService interface {
	IssueToken(ctx context.Context, req dto.ReportAccessRequest) (*dto.ReportAccessResponse, error)
}

// ReportHandler serves report persistence, viewing and export endpoints.
type ReportHandler struct {
	reports reportService
	exports exportService
	access  accessService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(reports reportService, exports exportService, access accessService) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports, access: access}
}

// Save godoc
// @Summary Save an eligibility report
// @Description Creates or replaces the report for centerCode and batchName. Verdicts are recomputed from the submitted marks and uploadDate is set by the server.
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.SaveReportRequest true "Report payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Save(c *gin.Context) {
	var req dto.SaveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	result, err := h.reports.SaveReport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, result)
}

// List godoc
// @Summary List saved reports
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	keys, err := h.reports.ListReports(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if keys == nil {
		keys = []models.ReportKey{}
	}
	response.JSON(c, http.StatusOK, keys, map[string]interface{}{"total": len(keys)})
}

// Centers godoc
// @Summary List saved reports grouped by center
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /centers [get]
func (h *ReportHandler) Centers(c *gin.Context) {
	centers, err := h.reports.ListCenters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, centers)
}

// Access godoc
// @Summary Exchange the viewing password for a report access token
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ReportAccessRequest true "Report key and password"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /reports/access [post]
func (h *ReportHandler) Access(c *gin.Context) {
	var req dto.ReportAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	token, err := h.access.IssueToken(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token)
}

// Get godoc
// @Summary Fetch a saved report
// @Tags Reports
// @Produce json
// @Param center path string true "Center code"
// @Param batch path string true "Batch name"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /reports/{center}/{batch} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.reports.GetReport(c.Request.Context(), reportKeyFromPath(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewReportResponse(*report))
}

// Export godoc
// @Summary Download a saved report as CSV or PDF
// @Tags Reports
// @Produce octet-stream
// @Param center path string true "Center code"
// @Param batch path string true "Batch name"
// @Param format query string false "csv (default) or pdf"
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /reports/{center}/{batch}/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	format := models.ReportFormat(c.DefaultQuery("format", string(models.ReportFormatCSV)))
	file, err := h.exports.Export(c.Request.Context(), reportKeyFromPath(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", strconv.Quote(file.Filename)))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func reportKeyFromPath(c *gin.Context) models.ReportKey {
	return models.ReportKey{
		CenterCode: c.Param(middleware.ParamCenter),
		BatchName:  c.Param(middleware.ParamBatch),
	}
}
