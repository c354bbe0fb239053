// Package app wires the analyzer's components from configuration. Both the
// HTTP server and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/analysis"
	"github.com/fleveque/fundamentals-analyzer/internal/config"
	"github.com/fleveque/fundamentals-analyzer/internal/llm"
	"github.com/fleveque/fundamentals-analyzer/internal/research"
	"github.com/fleveque/fundamentals-analyzer/internal/service"
	"github.com/fleveque/fundamentals-analyzer/internal/storage"
)

// App holds the wired components.
type App struct {
	DB          *sqlx.DB
	Secrets     *config.SecretStore
	SessionRepo storage.SessionRepository
	LLMCallRepo storage.LLMCallRepository
	Factory     *llm.Factory
	Reports     *service.ReportService

	logger *zap.Logger
}

// New opens the call ledger, loads secrets and prompts, and builds the
// workspace and report service. Close releases the database.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.Storage.DatabasePath != "" && cfg.Storage.DatabasePath != storage.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a, err := build(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, db *sqlx.DB, logger *zap.Logger) (*App, error) {
	secrets, err := config.NewSecretStore(cfg.LLM.SecretsFile)
	if err != nil {
		return nil, err
	}

	prompts := analysis.DefaultPrompts()
	if cfg.Analysis.PromptsFile != "" {
		if prompts, err = analysis.LoadPrompts(cfg.Analysis.PromptsFile); err != nil {
			return nil, err
		}
	}

	sessionRepo := storage.NewSessionRepository(db)
	llmCallRepo := storage.NewLLMCallRepository(db)
	factory := llm.NewFactory(cfg.LLM, logger)

	analyzer := analysis.NewAnalyzer(logger,
		analysis.WithCacheFailures(cfg.Analysis.CacheFailures),
		analysis.WithCallTimeout(cfg.Analysis.CallTimeout),
		analysis.WithRecorder(llmCallRepo),
	)

	var enhancers analysis.EnhancerFactory
	if cfg.Research.Enabled {
		searcher := research.NewDuckDuckGo(cfg.Research, logger)
		enhancers = func(company string) analysis.Enhancer {
			return research.NewEnhancer(company, searcher, logger)
		}
	}

	ws := analysis.NewWorkspace(analysis.WorkspaceDeps{
		Factory:  factory,
		Secrets:  secrets,
		Prompts:  prompts,
		Analyzer: analyzer,
		Sessions: sessionRepo,
		Research: enhancers,
		Logger:   logger,
	})

	var rasterizer *service.Rasterizer
	if service.SVGSupported() {
		if rasterizer, err = service.NewRasterizer("ffffff"); err != nil {
			return nil, err
		}
	} else {
		logger.Info("libvips has no SVG loader; PNG diagrams disabled")
	}

	return &App{
		DB:          db,
		Secrets:     secrets,
		SessionRepo: sessionRepo,
		LLMCallRepo: llmCallRepo,
		Factory:     factory,
		Reports:     service.NewReportService(ws, rasterizer, logger),
		logger:      logger,
	}, nil
}

// ConnectDefault connects identity when it is set. Failure is logged, not
// returned: the app starts without a provider and the user connects one.
func (a *App) ConnectDefault(ctx context.Context, identity string) {
	if identity == "" {
		return
	}
	if _, err := a.Reports.Workspace().Connect(ctx, identity, ""); err != nil {
		a.logger.Warn("default provider not connected", zap.String("provider", identity), zap.Error(err))
	}
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}
