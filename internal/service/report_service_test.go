package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eligibility-report-api/internal/dto"
	"github.com/noah-isme/eligibility-report-api/internal/models"
	"github.com/noah-isme/eligibility-report-api/internal/repository"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
	"github.com/noah-isme/eligibility-report-api/pkg/retry"
	"github.com/noah-isme/eligibility-report-api/pkg/storage"
)

type reportStoreStub struct {
	mu      sync.Mutex
	reports map[models.ReportKey]models.Report
	keys    []models.ReportKey
	err     error
}

func newReportStoreStub() *reportStoreStub {
	return &reportStoreStub{reports: map[models.ReportKey]models.Report{}}
}

func (s *reportStoreStub) Upsert(ctx context.Context, report models.Report) (repository.StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return repository.StoreResult{}, s.err
	}
	_, exists := s.reports[report.Key]
	s.reports[report.Key] = report
	return repository.StoreResult{ID: "reports/" + report.Key.FileName(), Created: !exists, Key: report.Key}, nil
}

func (s *reportStoreStub) Fetch(ctx context.Context, key models.ReportKey) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[key]
	if !ok {
		return models.Report{}, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	return report, nil
}

func (s *reportStoreStub) ListKeys(ctx context.Context) ([]models.ReportKey, error) {
	return s.keys, s.err
}

var fixedNow = time.Date(2024, 3, 1, 10, 30, 0, 0, time.FixedZone("WIB", 7*3600))

func validSaveRequest() dto.SaveReportRequest {
	comment := "  resubmitted lab  "
	return dto.SaveReportRequest{
		CenterCode: "C001",
		BatchName:  "Batch-2024",
		UploadedBy: " alice ",
		Data: []dto.LearnerPayload{
			{
				Code: "L1",
				Name: "Ann",
				Courses: map[models.CourseCode]models.CourseResult{
					"BS-CIT": {
						ClassroomMarks: models.MarkPair{Actual: 10, Max: 20},
						LabMarks:       models.MarkPair{Actual: 40, Max: 60},
						SessionCount:   models.MarkPair{Actual: 50, Max: 60},
						Enrolled:       true,
					},
				},
				Comment: &comment,
			},
		},
	}
}

func newReportServiceForTest(t *testing.T, store reportStore) *ReportService {
	t.Helper()
	svc := NewReportService(store, newTestEvaluator(t), nil, zap.NewNop())
	svc.SetClock(func() time.Time { return fixedNow })
	return svc
}

func TestSaveReportRescoresAndStampsUploadDate(t *testing.T) {
	store := newReportStoreStub()
	svc := newReportServiceForTest(t, store)

	resp, err := svc.SaveReport(context.Background(), validSaveRequest())
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, "C001", resp.CenterCode)
	assert.Equal(t, 1, resp.Learners)
	assert.Equal(t, fixedNow.UTC(), resp.UploadDate)
	assert.Equal(t, time.UTC, resp.UploadDate.Location())

	saved := store.reports[models.ReportKey{CenterCode: "C001", BatchName: "Batch-2024"}]
	assert.Equal(t, "alice", saved.UploadedBy)
	require.Len(t, saved.Learners, 1)
	learner := saved.Learners[0]
	assert.True(t, learner.Courses["BS-CIT"].Eligible)
	assert.True(t, learner.OverallEligible)
	assert.Len(t, learner.Courses, 3)
	require.NotNil(t, learner.Comment)
	assert.Equal(t, "resubmitted lab", *learner.Comment)
}

func TestSaveReportSecondSaveReplaces(t *testing.T) {
	store := newReportStoreStub()
	svc := newReportServiceForTest(t, store)

	_, err := svc.SaveReport(context.Background(), validSaveRequest())
	require.NoError(t, err)
	resp, err := svc.SaveReport(context.Background(), validSaveRequest())
	require.NoError(t, err)
	assert.False(t, resp.Created)
	assert.Len(t, store.reports, 1)
}

func TestSaveReportValidation(t *testing.T) {
	cases := map[string]func(*dto.SaveReportRequest){
		"missing center":        func(r *dto.SaveReportRequest) { r.CenterCode = "" },
		"center with separator": func(r *dto.SaveReportRequest) { r.CenterCode = "C_01" },
		"reserved char":         func(r *dto.SaveReportRequest) { r.BatchName = "2024/Q1" },
		"missing uploader":      func(r *dto.SaveReportRequest) { r.UploadedBy = "  " },
		"empty data":            func(r *dto.SaveReportRequest) { r.Data = nil },
		"anonymous learner":     func(r *dto.SaveReportRequest) { r.Data[0].Code, r.Data[0].Name = "", "" },
		"unknown course": func(r *dto.SaveReportRequest) {
			r.Data[0].Courses = map[models.CourseCode]models.CourseResult{"BS-XYZ": {}}
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			store := newReportStoreStub()
			svc := newReportServiceForTest(t, store)
			req := validSaveRequest()
			mutate(&req)

			_, err := svc.SaveReport(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
			assert.Empty(t, store.reports)
		})
	}
}

func TestSaveReportPropagatesStoreError(t *testing.T) {
	store := newReportStoreStub()
	store.err = appErrors.Clone(appErrors.ErrStore, "backend down")
	svc := newReportServiceForTest(t, store)

	_, err := svc.SaveReport(context.Background(), validSaveRequest())
	assert.True(t, errors.Is(err, appErrors.ErrStore))
}

func TestListCentersGroupsAndSorts(t *testing.T) {
	store := newReportStoreStub()
	store.keys = []models.ReportKey{
		{CenterCode: "C2", BatchName: "b"},
		{CenterCode: "C1", BatchName: "z"},
		{CenterCode: "C1", BatchName: "a"},
	}
	svc := newReportServiceForTest(t, store)

	centers, err := svc.ListCenters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.CenterReports{
		{CenterCode: "C1", Batches: []string{"a", "z"}},
		{CenterCode: "C2", Batches: []string{"b"}},
	}, centers)
}

func TestGetReportValidatesKeyAndMapsNotFound(t *testing.T) {
	svc := newReportServiceForTest(t, newReportStoreStub())

	_, err := svc.GetReport(context.Background(), models.ReportKey{CenterCode: "", BatchName: "b"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.GetReport(context.Background(), models.ReportKey{CenterCode: "C1", BatchName: "missing"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportServiceAgainstFilesystemStore(t *testing.T) {
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	cache := NewCacheService(repository.NewMemoryCacheRepository(nil), nil, time.Minute, nil, true)
	store := repository.NewReportStore(backend, cache, nil, repository.ReportStoreConfig{
		Container: "reports",
		CacheTTL:  time.Minute,
		Retry:     retry.New(1, 0, nil),
	}, zap.NewNop())
	svc := newReportServiceForTest(t, store)
	ctx := context.Background()

	first, err := svc.SaveReport(ctx, validSaveRequest())
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := svc.SaveReport(ctx, validSaveRequest())
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.ID, second.ID)

	keys, err := svc.ListReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ReportKey{{CenterCode: "C001", BatchName: "Batch-2024"}}, keys)

	report, err := svc.GetReport(ctx, keys[0])
	require.NoError(t, err)
	assert.Equal(t, "alice", report.UploadedBy)
	assert.True(t, report.UploadDate.Equal(fixedNow))
	require.Len(t, report.Learners, 1)
	assert.True(t, report.Learners[0].OverallEligible)
}
