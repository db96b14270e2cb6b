package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eligibility-report-api/internal/eligibility"
	"github.com/noah-isme/eligibility-report-api/internal/models"
	"github.com/noah-isme/eligibility-report-api/internal/service"
)

type ingestServiceMock struct {
	received string
	result   *models.IngestResult
}

func (m *ingestServiceMock) IngestCSV(ctx context.Context, r io.Reader) (*models.IngestResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.received = string(body)
	return m.result, nil
}

func multipartContext(t *testing.T, field, filename, content string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/uploads", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	return c, w
}

func TestUploadHandlerPassesFileToService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &ingestServiceMock{result: &models.IngestResult{Accepted: 1, Learners: []models.LearnerRecord{{Code: "L1"}}}}
	handler := NewUploadHandler(svc, 1<<20)

	c, w := multipartContext(t, "file", "learners.csv", "Learner Code\nL1\n")
	handler.Upload(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Learner Code\nL1\n", svc.received)

	var result models.IngestResult
	assert.Empty(t, decodeEnvelope(t, w, &result))
	assert.Equal(t, 1, result.Accepted)
}

func TestUploadHandlerRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUploadHandler(&ingestServiceMock{}, 1<<20)

	c, w := multipartContext(t, "other", "learners.csv", "x")
	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHandlerRejectsNonCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUploadHandler(&ingestServiceMock{}, 1<<20)

	c, w := multipartContext(t, "file", "learners.xlsx", "x")
	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHandlerEnforcesSizeLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewUploadHandler(&ingestServiceMock{}, 64)

	c, w := multipartContext(t, "file", "learners.csv", strings.Repeat("a", 1024))
	handler.Upload(c)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeEnvelope(t, w, nil))
}

func TestUploadHandlerWithIngestService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	evaluator, err := eligibility.NewEvaluator(eligibility.DefaultCriteria(), eligibility.PolicyEnrolled)
	require.NoError(t, err)
	handler := NewUploadHandler(service.NewIngestService(evaluator, nil, nil), 1<<20)

	csv := "Learner Code,Learner Name,BS-CSS Classroom Internal Marks,BS-CSS Lab Internal Marks,BS-CSS Completed Session Count\n" +
		"L1,Ann,9/20,37/60,16/20\n" +
		",,,,\n"
	c, w := multipartContext(t, "file", "learners.csv", csv)
	handler.Upload(c)
	require.Equal(t, http.StatusOK, w.Code)

	var result models.IngestResult
	assert.Empty(t, decodeEnvelope(t, w, &result))
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Learners, 1)
	assert.True(t, result.Learners[0].OverallEligible)
	assert.True(t, result.Learners[0].Courses["BS-CSS"].Eligible)
}
