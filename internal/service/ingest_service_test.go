package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eligibility-report-api/internal/eligibility"
	"github.com/noah-isme/eligibility-report-api/internal/ingest"
	"github.com/noah-isme/eligibility-report-api/internal/models"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
)

const ingestCSV = "Learner Code,Learner Name,BS-CIT Classroom Internal Marks,BS-CIT Lab Internal Marks,BS-CIT Completed Session Count\n" +
	"L1,Ann,10/20,40/60,50/60\n" +
	",,1/20,,\n" +
	"L3,,abc,40/60,50/60\n"

func newTestEvaluator(t *testing.T) *eligibility.Evaluator {
	t.Helper()
	evaluator, err := eligibility.NewEvaluator(eligibility.DefaultCriteria(), eligibility.PolicyEnrolled)
	require.NoError(t, err)
	return evaluator
}

func TestIngestCSVAcceptsSkipsAndWarns(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewIngestService(newTestEvaluator(t), metrics, zap.NewNop())

	result, err := svc.IngestCSV(context.Background(), strings.NewReader(ingestCSV))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.SkippedRows, 1)
	assert.Equal(t, 2, result.SkippedRows[0].Row)

	require.Len(t, result.Learners, 2)
	assert.Equal(t, "L1", result.Learners[0].Code)
	assert.True(t, result.Learners[0].OverallEligible)
	assert.True(t, result.Learners[0].Courses["BS-CIT"].Eligible)
	assert.False(t, result.Learners[0].Courses["BS-CLS"].Enrolled)

	assert.Equal(t, "L3", result.Learners[1].Code)
	assert.False(t, result.Learners[1].OverallEligible)

	require.Len(t, result.Warnings, 1)
	warning := result.Warnings[0]
	assert.Equal(t, 3, warning.Row)
	assert.Equal(t, "L3", warning.Learner)
	assert.Equal(t, models.CourseCode("BS-CIT"), warning.Course)
	assert.Equal(t, eligibility.FieldClassroom, warning.Field)
	assert.Equal(t, string(eligibility.IssueUnparsableActual), warning.Reason)

	assert.Equal(t, float64(2), counterValue(t, metrics.Registry(), "ingest_rows_total", "accepted"))
	assert.Equal(t, float64(1), counterValue(t, metrics.Registry(), "ingest_rows_total", "skipped"))
}

func TestIngestEmptySourceReturnsEmptyCollections(t *testing.T) {
	svc := NewIngestService(newTestEvaluator(t), nil, nil)

	result, err := svc.Ingest(context.Background(), ingest.NewSliceSource(nil))
	require.NoError(t, err)
	assert.Zero(t, result.Accepted)
	assert.NotNil(t, result.Learners)
	assert.NotNil(t, result.SkippedRows)
	assert.NotNil(t, result.Warnings)
}

func TestIngestCSVRejectsMissingHeader(t *testing.T) {
	svc := NewIngestService(newTestEvaluator(t), nil, nil)

	_, err := svc.IngestCSV(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

type failingSource struct{ rows int }

func (s *failingSource) Next() (models.Row, error) {
	if s.rows > 0 {
		s.rows--
		return models.Row{eligibility.ColumnLearnerCode: "L"}, nil
	}
	return nil, errors.New("broken stream")
}

func TestIngestSourceErrorAbortsWithRowNumber(t *testing.T) {
	svc := NewIngestService(newTestEvaluator(t), nil, nil)

	_, err := svc.Ingest(context.Background(), &failingSource{rows: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Contains(t, err.Error(), "row 3")
}

func TestIngestHonoursCancellation(t *testing.T) {
	svc := NewIngestService(newTestEvaluator(t), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ingest(ctx, ingest.NewSliceSource([]models.Row{{eligibility.ColumnLearnerCode: "L1"}}))
	assert.ErrorIs(t, err, context.Canceled)
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labelValues ...string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			labels := metric.GetLabel()
			if len(labels) != len(labelValues) {
				continue
			}
			for i, label := range labels {
				if label.GetValue() != labelValues[i] {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
