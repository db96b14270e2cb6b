package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eligibility-report-api/internal/models"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
	"github.com/noah-isme/eligibility-report-api/pkg/response"
)

// ContextAccessKey is the gin context key storing report access claims.
const ContextAccessKey = "reportAccess"

// Route parameters naming the report key.
const (
	ParamCenter = "center"
	ParamBatch  = "batch"
)

// ReportAuthorizer validates access tokens against a report key.
type ReportAuthorizer interface {
	Enabled() bool
	Authorize(token string, key models.ReportKey) (*models.ReportAccessClaims, error)
}

// ReportAccess requires a bearer token issued for the report named by the route parameters.
// It passes every request through when the authorizer is disabled.
func ReportAccess(authorizer ReportAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authorizer == nil || !authorizer.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "report access token required"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		key := models.ReportKey{CenterCode: c.Param(ParamCenter), BatchName: c.Param(ParamBatch)}
		claims, err := authorizer.Authorize(strings.TrimSpace(parts[1]), key)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextAccessKey, claims)
		c.Next()
	}
}
