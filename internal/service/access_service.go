package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/eligibility-report-api/internal/dto"
	"github.com/noah-isme/eligibility-report-api/internal/models"
	"github.com/noah-isme/eligibility-report-api/pkg/config"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
)

const accessTokenType = "Bearer"

// AccessService exchanges the report viewing password for tokens scoped to a single report.
type AccessService struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewAccessService constructs the service. An empty password hash disables the gate.
func NewAccessService(cfg config.AccessConfig, validate *validator.Validate, logger *zap.Logger) *AccessService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AccessService{
		passwordHash: []byte(strings.TrimSpace(cfg.PasswordHash)),
		secret:       []byte(cfg.Secret),
		ttl:          ttl,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock overrides the time source used for token issuance.
func (s *AccessService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Enabled reports whether report viewing requires a token.
func (s *AccessService) Enabled() bool {
	return len(s.passwordHash) > 0
}

// IssueToken checks the password and returns a token valid for the requested report only.
func (s *AccessService) IssueToken(ctx context.Context, req dto.ReportAccessRequest) (*dto.ReportAccessResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid access payload")
	}
	key := models.ReportKey{CenterCode: req.CenterCode, BatchName: req.BatchName}
	if err := key.Validate(); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid report key")
	}

	if s.Enabled() {
		if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil {
			s.logger.Info("report access denied", zap.String("key", key.Token()))
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid password")
		}
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := models.ReportAccessClaims{
		CenterCode: key.CenterCode,
		BatchName:  key.BatchName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   key.Token(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign access token")
	}

	return &dto.ReportAccessResponse{Token: signed, TokenType: accessTokenType, ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AccessService) ValidateToken(tokenString string) (*models.ReportAccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.ReportAccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.ReportAccessClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

// Authorize validates the token and checks that it was issued for key.
func (s *AccessService) Authorize(tokenString string, key models.ReportKey) (*models.ReportAccessClaims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Key() != key {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not grant access to this report")
	}
	return claims, nil
}
