package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/eligibility-report-api/api/swagger"
	"github.com/noah-isme/eligibility-report-api/internal/eligibility"
	"github.com/noah-isme/eligibility-report-api/internal/handler"
	"github.com/noah-isme/eligibility-report-api/internal/models"
	"github.com/noah-isme/eligibility-report-api/internal/repository"
	"github.com/noah-isme/eligibility-report-api/internal/service"
	"github.com/noah-isme/eligibility-report-api/pkg/cache"
	"github.com/noah-isme/eligibility-report-api/pkg/config"
	"github.com/noah-isme/eligibility-report-api/pkg/database"
	"github.com/noah-isme/eligibility-report-api/pkg/logger"
	"github.com/noah-isme/eligibility-report-api/pkg/retry"
	"github.com/noah-isme/eligibility-report-api/pkg/storage"
)

// @title Learner Eligibility Report API
// @version 1.0.0
// @description Ingests learner mark sheets, evaluates course eligibility and stores one report per center and batch.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	for _, warning := range cfg.Warnings {
		logr.Warn("invalid configuration value", zap.String("detail", warning))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDependencies(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to initialise dependencies", zap.Error(err))
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("cache", cfg.Cache.Backend),
			zap.String("policy", cfg.Eligibility.OverallPolicy),
			zap.Bool("access_gate", deps.access.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}

// dependencies holds the wired services the router needs.
type dependencies struct {
	metrics *service.MetricsService
	ingest  *service.IngestService
	reports *service.ReportService
	exports *service.ExportService
	access  *service.AccessService
	checks  map[string]handler.ReadinessCheck
}

func buildDependencies(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	metrics := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	backend, closeBackend, err := newBackend(ctx, cfg, logr, checks)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, closeBackend)

	cacheRepo, closeCache, err := newCacheRepository(ctx, cfg, logr, checks)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	closers = append(closers, closeCache)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, true)
	store := repository.NewReportStore(backend, cacheSvc, metrics, repository.ReportStoreConfig{
		Container: cfg.Storage.Container,
		CacheTTL:  cfg.Cache.TTL,
		Retry:     retry.New(cfg.Store.RetryAttempts, cfg.Store.RetryDelay, logr),
	}, logr)
	checks["store"] = store.Ping

	evaluator, err := eligibility.NewEvaluator(eligibility.DefaultCriteria(), eligibility.ParsePolicy(cfg.Eligibility.OverallPolicy))
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	courses := make([]models.CourseCode, 0, len(evaluator.Courses()))
	for _, course := range evaluator.Courses() {
		courses = append(courses, course.Code)
	}

	validate := validator.New()
	reports := service.NewReportService(store, evaluator, validate, logr)
	deps := &dependencies{
		metrics: metrics,
		ingest:  service.NewIngestService(evaluator, metrics, logr),
		reports: reports,
		exports: service.NewExportService(reports, courses, logr, nil, nil),
		access:  service.NewAccessService(cfg.Access, validate, logr),
		checks:  checks,
	}
	if !deps.access.Enabled() {
		logr.Warn("report access gate disabled: REPORT_ACCESS_PASSWORD_HASH is empty")
	}
	return deps, cleanup, nil
}

func newBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (storage.Backend, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageS3:
		backend, err := storage.NewS3Backend(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, func() {}, fmt.Errorf("init s3 backend: %w", err)
		}
		logr.Info("using s3 report storage", zap.String("bucket", cfg.Storage.S3.Bucket), zap.String("region", cfg.Storage.S3.Region))
		return backend, func() {}, nil
	case config.StoragePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, func() {}, err
		}
		blobs := repository.NewBlobRepository(db)
		if err := blobs.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, func() {}, err
		}
		checks["postgres"] = db.PingContext
		logr.Info("using postgres report storage", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Name))
		return blobs, func() { _ = db.Close() }, nil
	default:
		backend, err := storage.NewLocalBackend(cfg.Storage.Dir)
		if err != nil {
			return nil, func() {}, fmt.Errorf("init filesystem backend: %w", err)
		}
		logr.Info("using filesystem report storage", zap.String("dir", cfg.Storage.Dir))
		return backend, func() {}, nil
	}
}

func newCacheRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (service.CacheRepository, func(), error) {
	if cfg.Cache.Backend != config.CacheRedis {
		return repository.NewMemoryCacheRepository(nil), func() {}, nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, func() {}, err
	}
	checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	logr.Info("using redis metadata cache", zap.String("addr", client.Options().Addr))
	repo := repository.NewCacheRepository(client, "eligibility:", logr)
	return repo, func() { _ = repo.Close() }, nil
}
