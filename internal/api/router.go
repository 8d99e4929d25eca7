// Package api provides the HTTP boundary of the SmartDoc service: multipart
// document submission, task polling, and system status.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/observability"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/pipeline"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/registry"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/scheduler"
)

// Deps carries everything the handlers need.
type Deps struct {
	Logger       *observability.Logger
	Registry     *registry.Registry
	Orchestrator *pipeline.Orchestrator
	Scheduler    *scheduler.Scheduler

	MaxUploadBytes int64
	RequestTimeout time.Duration
	Defaults       domain.ProcessingConfig
	StartedAt      time.Time

	// ReadyCheck reports whether the model server is reachable. Optional;
	// when nil the readiness probe only covers the service itself.
	ReadyCheck func(ctx context.Context) error
}

// NewRouter creates the API router with all routes configured.
func NewRouter(deps Deps) http.Handler {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 50 << 20
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 120 * time.Second
	}
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}

	docs := &documentHandler{deps: deps, logger: deps.Logger.WithComponent("api")}
	tasks := &taskHandler{deps: deps, logger: deps.Logger.WithComponent("api")}
	system := &systemHandler{deps: deps}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(deps.RequestTimeout))

	r.Get("/health", system.Health)
	r.Get("/ready", system.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/parse", docs.Parse)
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", tasks.Create)
			r.Get("/{taskID}", tasks.Get)
			r.Delete("/{taskID}", tasks.Cancel)
		})
		r.Get("/system/status", system.Status)
	})

	return r
}
