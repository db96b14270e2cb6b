package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func request(allowed []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(New(allowed))
	router.GET("/reports", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.OPTIONS("/reports", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/reports", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAllowAllUsesWildcardWithoutCredentials(t *testing.T) {
	rec := request(nil, http.MethodGet, "https://viewer.example.com")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestAllowListEchoesKnownOrigin(t *testing.T) {
	rec := request([]string{"https://viewer.example.com/"}, http.MethodGet, "https://viewer.example.com")
	assert.Equal(t, "https://viewer.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = request([]string{"https://viewer.example.com"}, http.MethodGet, "https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPreflightShortCircuits(t *testing.T) {
	rec := request(nil, http.MethodOptions, "https://viewer.example.com")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
