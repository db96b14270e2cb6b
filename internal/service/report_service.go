package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/eligibility-report-api/internal/dto"
	"github.com/noah-isme/eligibility-report-api/internal/eligibility"
	"github.com/noah-isme/eligibility-report-api/internal/models"
	"github.com/noah-isme/eligibility-report-api/internal/repository"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
)

type reportStore interface {
	Upsert(ctx context.Context, report models.Report) (repository.StoreResult, error)
	Fetch(ctx context.Context, key models.ReportKey) (models.Report, error)
	ListKeys(ctx context.Context) ([]models.ReportKey, error)
}

// ReportService saves, lists and fetches eligibility reports.
type ReportService struct {
	store     reportStore
	evaluator *eligibility.Evaluator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs the service. When evaluator is set, submitted verdicts are
// recomputed from the submitted marks before saving.
func NewReportService(store reportStore, evaluator *eligibility.Evaluator, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReportService{store: store, evaluator: evaluator, validator: validate, logger: logger, now: time.Now}
	svc.validator.RegisterValidation("report_center", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return models.ValidateKeyPart(value) == nil && !strings.Contains(value, models.KeySeparator)
	})
	svc.validator.RegisterValidation("report_batch", func(fl validator.FieldLevel) bool {
		return models.ValidateKeyPart(fl.Field().String()) == nil
	})
	return svc
}

// SetClock overrides the time source used for upload dates.
func (s *ReportService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SaveReport upserts a report; the upload date is assigned here, at save time.
func (s *ReportService) SaveReport(ctx context.Context, req dto.SaveReportRequest) (*dto.SaveReportResponse, error) {
	req.UploadedBy = strings.TrimSpace(req.UploadedBy)
	for i := range req.Data {
		req.Data[i].Code = strings.TrimSpace(req.Data[i].Code)
		req.Data[i].Name = strings.TrimSpace(req.Data[i].Name)
		req.Data[i].Comment = normalizeComment(req.Data[i].Comment)
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	learners := make([]models.LearnerRecord, 0, len(req.Data))
	for _, item := range req.Data {
		record := models.LearnerRecord{
			Code:            item.Code,
			Name:            item.Name,
			Courses:         item.Courses,
			OverallEligible: item.OverallEligible,
			Comment:         item.Comment,
		}
		if s.evaluator != nil {
			rescored, err := s.evaluator.Rescore(record)
			if err != nil {
				return nil, err
			}
			record = rescored
		}
		learners = append(learners, record)
	}

	report := models.Report{
		Key:        models.ReportKey{CenterCode: req.CenterCode, BatchName: req.BatchName},
		UploadedBy: req.UploadedBy,
		UploadDate: s.now().UTC(),
		Learners:   learners,
	}

	result, err := s.store.Upsert(ctx, report)
	if err != nil {
		return nil, err
	}

	return &dto.SaveReportResponse{
		ID:         result.ID,
		Created:    result.Created,
		CenterCode: report.Key.CenterCode,
		BatchName:  report.Key.BatchName,
		UploadDate: report.UploadDate,
		Learners:   len(learners),
	}, nil
}

// ListReports returns the report index.
func (s *ReportService) ListReports(ctx context.Context) ([]models.ReportKey, error) {
	return s.store.ListKeys(ctx)
}

// ListCenters groups the report index by center code.
func (s *ReportService) ListCenters(ctx context.Context) ([]models.CenterReports, error) {
	keys, err := s.store.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	byCenter := make(map[string][]string)
	for _, key := range keys {
		byCenter[key.CenterCode] = append(byCenter[key.CenterCode], key.BatchName)
	}

	centers := make([]models.CenterReports, 0, len(byCenter))
	for center, batches := range byCenter {
		sort.Strings(batches)
		centers = append(centers, models.CenterReports{CenterCode: center, Batches: batches})
	}
	sort.Slice(centers, func(i, j int) bool { return centers[i].CenterCode < centers[j].CenterCode })
	return centers, nil
}

// GetReport fetches one stored report.
func (s *ReportService) GetReport(ctx context.Context, key models.ReportKey) (*models.Report, error) {
	if err := key.Validate(); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid report key")
	}
	report, err := s.store.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func normalizeComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
