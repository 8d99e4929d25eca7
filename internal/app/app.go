// Package app assembles the SmartDoc service from its components and runs
// the HTTP server with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/api"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/config"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/inference"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/layout"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/observability"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/pipeline"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/registry"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/scheduler"
)

// App wires together all SmartDoc components.
type App struct {
	cfg    *config.Config
	logger *observability.Logger

	store        registry.Store
	registry     *registry.Registry
	scheduler    *scheduler.Scheduler
	orchestrator *pipeline.Orchestrator
	server       *http.Server
}

// New builds an App from the given configuration.
func New(cfg *config.Config) (*App, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		Output:      os.Stderr,
		ServiceName: "smartdoc",
	})

	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("create task store: %w", err)
	}

	reg := registry.New(store, logger)

	client := inference.NewHTTPClient(inference.HTTPConfig{
		Endpoint:       cfg.Model.Endpoint,
		Timeout:        cfg.Model.Timeout,
		MaxRetries:     cfg.Model.MaxRetries,
		InitialBackoff: cfg.Model.InitialBackoff,
		MaxBackoff:     cfg.Model.MaxBackoff,
	}, logger)

	sched := scheduler.New(client, scheduler.Config{
		MaxBatchSize:         cfg.Scheduler.MaxBatchSize,
		MemoryBudgetBytes:    cfg.Scheduler.MemoryBudgetBytes,
		MaxRequestBytes:      cfg.Scheduler.MaxRequestBytes,
		FormationWindow:      cfg.Scheduler.FormationWindow,
		MaxConcurrentBatches: cfg.Scheduler.MaxConcurrentBatches,
	}, logger)

	analyzer := layout.NewAnalyzer(client, logger)

	orch := pipeline.New(analyzer, sched, reg, pipeline.Config{
		MaxRetries:      cfg.Pipeline.MaxRetries,
		FailurePolicy:   domain.FailurePolicy(cfg.Pipeline.FailurePolicy),
		RequestDeadline: cfg.Pipeline.RequestDeadline,
		MergeGapPx:      cfg.Pipeline.MergeGapPx,
	}, logger)

	router := api.NewRouter(api.Deps{
		Logger:         logger,
		Registry:       reg,
		Orchestrator:   orch,
		Scheduler:      sched,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RequestTimeout: cfg.Server.WriteTimeout,
		Defaults: domain.ProcessingConfig{
			MaxBatchSize:  cfg.Scheduler.MaxBatchSize,
			OutputFormat:  domain.FormatJSON,
			FailurePolicy: domain.FailurePolicy(cfg.Pipeline.FailurePolicy),
		},
		StartedAt:  time.Now(),
		ReadyCheck: client.Ping,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		registry:     reg,
		scheduler:    sched,
		orchestrator: orch,
		server:       server,
	}, nil
}

func newStore(cfg *config.Config) (registry.Store, error) {
	switch cfg.Store.Driver {
	case "redis":
		return registry.NewRedisStore(registry.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			PoolSize: cfg.Store.Redis.PoolSize,
			TTL:      cfg.Store.TTL,
		})
	default:
		return registry.NewMemoryStore(cfg.Store.TTL), nil
	}
}

// Logger exposes the application logger.
func (a *App) Logger() *observability.Logger { return a.logger }

// Run starts the HTTP server and blocks until ctx is cancelled or a
// termination signal arrives, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Str("addr", a.server.Addr).
			Str("store", a.cfg.Store.Driver).
			Str("model_endpoint", a.cfg.Model.Endpoint).
			Msg("starting smartdoc server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.GracefulShutdown)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("server shutdown")
	}

	a.scheduler.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("store close")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
