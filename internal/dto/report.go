package dto

import (
	"time"

	"github.com/noah-isme/eligibility-report-api/internal/models"
)

// LearnerPayload is one learner as submitted for saving.
type LearnerPayload struct {
	Code            string                                    `json:"code" validate:"required_without=Name,max=128"`
	Name            string                                    `json:"name" validate:"required_without=Code,max=256"`
	Courses         map[models.CourseCode]models.CourseResult `json:"courses" validate:"required"`
	OverallEligible bool                                      `json:"overallEligible"`
	Comment         *string                                   `json:"comment,omitempty" validate:"omitempty,max=500"`
}

// SaveReportRequest captures POST /reports payload.
type SaveReportRequest struct {
	CenterCode string           `json:"centerCode" validate:"required,report_center"`
	BatchName  string           `json:"batchName" validate:"required,report_batch"`
	UploadedBy string           `json:"uploadedBy" validate:"required,max=128"`
	Data       []LearnerPayload `json:"data" validate:"required,min=1,dive"`
}

// SaveReportResponse is returned after a report is persisted.
type SaveReportResponse struct {
	ID         string    `json:"id"`
	Created    bool      `json:"created"`
	CenterCode string    `json:"centerCode"`
	BatchName  string    `json:"batchName"`
	UploadDate time.Time `json:"uploadDate"`
	Learners   int       `json:"learners"`
}

// ReportResponse exposes a stored report.
type ReportResponse struct {
	CenterCode string                 `json:"centerCode"`
	BatchName  string                 `json:"batchName"`
	UploadedBy string                 `json:"uploadedBy"`
	UploadDate time.Time              `json:"uploadDate"`
	Data       []models.LearnerRecord `json:"data"`
}

// NewReportResponse maps a report onto its response shape.
func NewReportResponse(report models.Report) ReportResponse {
	data := report.Learners
	if data == nil {
		data = []models.LearnerRecord{}
	}
	return ReportResponse{
		CenterCode: report.Key.CenterCode,
		BatchName:  report.Key.BatchName,
		UploadedBy: report.UploadedBy,
		UploadDate: report.UploadDate,
		Data:       data,
	}
}
