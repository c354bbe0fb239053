// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/config"
	"github.com/fleveque/fundamentals-analyzer/internal/handler"
	"github.com/fleveque/fundamentals-analyzer/internal/middleware"
	"github.com/fleveque/fundamentals-analyzer/internal/service"
	"github.com/fleveque/fundamentals-analyzer/internal/storage"
)

// Deps holds what the handlers need. Dependencies are passed explicitly.
type Deps struct {
	Reports     *service.ReportService
	Secrets     *config.SecretStore
	SessionRepo storage.SessionRepository
	LLMCallRepo storage.LLMCallRepository
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	ws := deps.Reports.Workspace()
	healthHandler := handler.NewHealthHandler(ws)
	providerHandler := handler.NewProviderHandler(ws, deps.Secrets, logger)
	reportHandler := handler.NewReportHandler(deps.Reports, cfg.Server.MaxUploadMB, logger)
	adminHandler := handler.NewAdminHandler(deps.SessionRepo, deps.LLMCallRepo, logger)

	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.GET("/providers", providerHandler.List)
		authed.GET("/provider", providerHandler.Current)
		authed.POST("/provider", providerHandler.Connect)

		authed.POST("/reports", reportHandler.Upload)
		authed.GET("/reports/current", reportHandler.Current)
		authed.POST("/research", reportHandler.EnableResearch)

		authed.GET("/sections", reportHandler.Sections)
		authed.GET("/sections/:key", reportHandler.Section)
		authed.GET("/flow", reportHandler.Flow)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
	}
}
