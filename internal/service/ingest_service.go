package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/noah-isme/eligibility-report-api/internal/eligibility"
	"github.com/noah-isme/eligibility-report-api/internal/ingest"
	"github.com/noah-isme/eligibility-report-api/internal/models"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
)

// IngestService turns uploaded rows into learner records.
type IngestService struct {
	evaluator *eligibility.Evaluator
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewIngestService constructs the service.
func NewIngestService(evaluator *eligibility.Evaluator, metrics *MetricsService, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{evaluator: evaluator, metrics: metrics, logger: logger}
}

// IngestCSV parses a CSV stream with a header row and ingests its records.
func (s *IngestService) IngestCSV(ctx context.Context, r io.Reader) (*models.IngestResult, error) {
	src, err := ingest.NewCSVSource(r)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid CSV file")
	}
	return s.Ingest(ctx, src)
}

// Ingest aggregates every row of src. Rows lacking both learner code and name are counted as
// skipped; a source error aborts the whole ingestion.
func (s *IngestService) Ingest(ctx context.Context, src ingest.RowSource) (*models.IngestResult, error) {
	result := &models.IngestResult{
		Learners:    []models.LearnerRecord{},
		SkippedRows: []models.SkippedRow{},
		Warnings:    []models.Warning{},
	}

	for rowNum := 1; ; rowNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrValidation, fmt.Sprintf("invalid CSV at row %d", rowNum))
		}

		record, warnings, err := s.evaluator.Aggregate(row)
		if err != nil {
			if !errors.Is(err, appErrors.ErrMalformedRow) {
				return nil, err
			}
			reason := appErrors.FromError(err).Message
			s.logger.Debug("skipping row", zap.Int("row", rowNum), zap.String("reason", reason))
			result.Skipped++
			result.SkippedRows = append(result.SkippedRows, models.SkippedRow{Row: rowNum, Reason: reason})
			continue
		}

		for _, w := range warnings {
			w.Row = rowNum
			s.logger.Debug("cell defaulted",
				zap.Int("row", rowNum),
				zap.String("course", string(w.Course)),
				zap.String("field", w.Field),
				zap.String("reason", w.Reason),
			)
			result.Warnings = append(result.Warnings, w)
		}
		result.Accepted++
		result.Learners = append(result.Learners, record)
	}

	s.metrics.RecordIngest(result.Accepted, result.Skipped, len(result.Warnings))
	s.logger.Info("rows ingested",
		zap.Int("accepted", result.Accepted),
		zap.Int("skipped", result.Skipped),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}
