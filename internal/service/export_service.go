package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/eligibility-report-api/internal/models"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
	"github.com/noah-isme/eligibility-report-api/pkg/export"
)

const (
	statusEligible       = "Eligible"
	statusNotEligible    = "Not Eligible"
	overallEligible      = "Eligible for at least one course"
	overallNotEligible   = "Not Eligible for any course"
	contentTypeCSV       = "text/csv; charset=utf-8"
	contentTypePDF       = "application/pdf"
	exportFilenameMaxLen = 100
)

type reportReader interface {
	GetReport(ctx context.Context, key models.ReportKey) (*models.Report, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, subtitles ...string) ([]byte, error)
}

// ExportFile is a rendered report ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders stored reports as CSV or PDF.
type ExportService struct {
	reports reportReader
	courses []models.CourseCode
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewExportService constructs the service. courses fixes the course column order.
func NewExportService(reports reportReader, courses []models.CourseCode, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{reports: reports, courses: courses, csv: csv, pdf: pdf, logger: logger}
}

// Export fetches the report for key and renders it in the requested format.
func (s *ExportService) Export(ctx context.Context, key models.ReportKey, format models.ReportFormat) (*ExportFile, error) {
	format = models.ReportFormat(strings.ToLower(strings.TrimSpace(string(format))))
	if format == "" {
		format = models.ReportFormatCSV
	}
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	report, err := s.reports.GetReport(ctx, key)
	if err != nil {
		return nil, err
	}

	dataset := s.BuildDataset(*report)
	file := &ExportFile{Filename: sanitizeFilename(key.Token()) + "." + string(format)}

	switch format {
	case models.ReportFormatPDF:
		title := fmt.Sprintf("Eligibility Report %s / %s", key.CenterCode, key.BatchName)
		subtitle := fmt.Sprintf("Uploaded by %s on %s", report.UploadedBy, report.UploadDate.Format("02 Jan 2006 15:04 MST"))
		file.ContentType = contentTypePDF
		file.Content, err = s.pdf.Render(dataset, title, subtitle)
	default:
		file.ContentType = contentTypeCSV
		file.Content, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.logger.Error("render export failed", zap.String("key", key.Token()), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "render export")
	}

	return file, nil
}

// BuildDataset flattens a report into one row per learner.
func (s *ExportService) BuildDataset(report models.Report) export.Dataset {
	headers := []string{"#", "Learner Code", "Learner Name"}
	for _, code := range s.courses {
		c := string(code)
		headers = append(headers, c+" Classroom", c+" Lab", c+" Sessions", c+" Status")
	}
	headers = append(headers, "Overall Status", "Comment")

	rows := make([]map[string]string, 0, len(report.Learners))
	for i, learner := range report.Learners {
		row := map[string]string{
			"#":            strconv.Itoa(i + 1),
			"Learner Code": learner.Code,
			"Learner Name": learner.Name,
		}
		for _, code := range s.courses {
			result, ok := learner.Courses[code]
			if !ok {
				continue
			}
			c := string(code)
			row[c+" Classroom"] = result.ClassroomMarks.String()
			row[c+" Lab"] = result.LabMarks.String()
			row[c+" Sessions"] = result.SessionCount.String()
			row[c+" Status"] = statusEligible
			if !result.Eligible {
				row[c+" Status"] = statusNotEligible
			}
		}
		row["Overall Status"] = overallNotEligible
		if learner.OverallEligible {
			row["Overall Status"] = overallEligible
		}
		if learner.Comment != nil {
			row["Comment"] = *learner.Comment
		}
		rows = append(rows, row)
	}

	return export.Dataset{Headers: headers, Rows: rows}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "report"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > exportFilenameMaxLen {
		return result[:exportFilenameMaxLen]
	}
	return result
}
