package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceExposesStoreAndHTTPSeries(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/reports", http.StatusOK, 10*time.Millisecond)
	metrics.ObserveStoreOperation("list", "ok", time.Millisecond)
	metrics.IncStoreRetry("update")
	metrics.IncStoreRetry("update")

	assert.Equal(t, float64(2), counterValue(t, metrics.Registry(), "report_store_retries_total", "update"))
	assert.Equal(t, float64(1), counterValue(t, metrics.Registry(), "http_requests_total", "GET", "/api/v1/reports", "200"))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "report_store_operation_duration_seconds")
}

func TestMetricsServiceNilIsSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		metrics.RecordCacheOperation(true, time.Millisecond)
		metrics.ObserveCacheWrite(time.Millisecond)
		metrics.ObserveStoreOperation("get", "ok", time.Millisecond)
		metrics.IncStoreRetry("get")
		metrics.RecordIngest(1, 0, 0)
	})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
