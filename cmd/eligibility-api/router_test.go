package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/eligibility-report-api/pkg/config"
)

const uploadCSV = "Learner Code,Learner Name,BS-CIT Classroom Internal Marks,BS-CIT Lab Internal Marks,BS-CIT Completed Session Count\n" +
	"L1,Ann,10/20,40/60,50/60\n" +
	"L2,Ben,4/20,20/60,10/60\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("viewer"), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.Config{
		Env:       config.EnvProduction,
		APIPrefix: "/api/v1",
		Storage:   config.StorageConfig{Backend: config.StorageFilesystem, Container: "reports", Dir: t.TempDir()},
		Store:     config.StoreConfig{RetryAttempts: 2, RetryDelay: time.Millisecond},
		Cache:     config.CacheConfig{Backend: config.CacheMemory, TTL: time.Minute},
		Eligibility: config.EligibilityConfig{
			OverallPolicy: config.PolicyEnrolled,
		},
		Upload: config.UploadConfig{MaxBytes: 1 << 20},
		Access: config.AccessConfig{PasswordHash: string(hash), Secret: "secret", TokenTTL: time.Minute},
	}
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	deps, cleanup, err := buildDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return newRouter(cfg, zap.NewNop(), deps)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func dataOf(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func TestUploadSaveViewExportFlow(t *testing.T) {
	router := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "learners.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(uploadCSV))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ingested struct {
		Learners []json.RawMessage `json:"learners"`
		Accepted int               `json:"accepted"`
	}
	dataOf(t, rec, &ingested)
	require.Equal(t, 2, ingested.Accepted)

	save := map[string]interface{}{
		"centerCode": "C001",
		"batchName":  "Batch-2024",
		"uploadedBy": "alice",
		"data":       ingested.Learners,
	}
	rec = doJSON(t, router, http.MethodPost, "/api/v1/reports", save, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = doJSON(t, router, http.MethodPost, "/api/v1/reports", save, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/v1/reports", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"centerCode":"C001","batchName":"Batch-2024"}],"meta":{"total":1}}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/v1/centers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"centerCode":"C001","batches":["Batch-2024"]}]}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/v1/reports/C001/Batch-2024", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/reports/access", map[string]string{
		"centerCode": "C001", "batchName": "Batch-2024", "password": "viewer",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var token struct {
		Token string `json:"token"`
	}
	dataOf(t, rec, &token)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/reports/C001/Batch-2024", nil, token.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report struct {
		UploadedBy string `json:"uploadedBy"`
		Data       []struct {
			Code            string `json:"code"`
			OverallEligible bool   `json:"overallEligible"`
		} `json:"data"`
	}
	dataOf(t, rec, &report)
	assert.Equal(t, "alice", report.UploadedBy)
	require.Len(t, report.Data, 2)
	assert.True(t, report.Data[0].OverallEligible)
	assert.False(t, report.Data[1].OverallEligible)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/reports/C001/Batch-2024/export?format=csv", nil, token.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Eligible for at least one course")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "C001_Batch-2024.csv")

	rec = doJSON(t, router, http.MethodGet, "/api/v1/reports/C001/Other/export", nil, token.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOpsEndpoints(t *testing.T) {
	router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/ready", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"store":"ok"`))

	rec = doJSON(t, router, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	rec = doJSON(t, router, http.MethodGet, "/docs/index.html", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
