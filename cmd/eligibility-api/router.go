package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/eligibility-report-api/internal/handler"
	"github.com/noah-isme/eligibility-report-api/internal/middleware"
	"github.com/noah-isme/eligibility-report-api/pkg/config"
	"github.com/noah-isme/eligibility-report-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/eligibility-report-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/eligibility-report-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, deps *dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	uploadHandler := handler.NewUploadHandler(deps.ingest, cfg.Upload.MaxBytes)
	reportHandler := handler.NewReportHandler(deps.reports, deps.exports, deps.access)
	guard := middleware.ReportAccess(deps.access)

	api := r.Group(cfg.APIPrefix)
	api.POST("/uploads", uploadHandler.Upload)
	api.GET("/centers", reportHandler.Centers)

	reports := api.Group("/reports")
	reports.POST("", reportHandler.Save)
	reports.GET("", reportHandler.List)
	reports.POST("/access", reportHandler.Access)
	reports.GET("/:center/:batch", guard, reportHandler.Get)
	reports.GET("/:center/:batch/export", guard, reportHandler.Export)

	return r
}
