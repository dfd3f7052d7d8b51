package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/trackline/cmdb/internal/api/handlers"
	"github.com/trackline/cmdb/internal/api/middleware"
	"github.com/trackline/cmdb/internal/config"
	"github.com/trackline/cmdb/internal/pkg/logger"
	"github.com/trackline/cmdb/internal/pkg/metrics"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	CI           *handlers.CIHandler
	Relationship *handlers.RelationshipHandler
	Baseline     *handlers.BaselineHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(metrics.Middleware)

	// Health checks and metrics
	r.Get("/health", h.Health.Healthz)
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Handle("/metrics", metrics.Handler())

	// Configuration items
	r.Route("/api/v1/cis", func(r chi.Router) {
		r.Post("/", h.CI.Upsert)
		r.Post("/composite", h.CI.Ingest)
		r.Route("/{category}", func(r chi.Router) {
			r.Get("/", h.CI.List)
			r.Get("/{id}", h.CI.Get)
			r.Patch("/{id}/managed", h.CI.SetManaged)
			r.Delete("/{id}", h.CI.Delete)
			r.Get("/{id}/expand", h.CI.Expand)
		})
	})

	// Relationships
	r.Route("/api/v1/relationships", func(r chi.Router) {
		r.Post("/", h.Relationship.Create)
		r.Delete("/", h.Relationship.Delete)
		r.Get("/entity/{id}", h.Relationship.ListForEntity)
	})

	// Baselines
	r.Route("/api/v1/baselines", func(r chi.Router) {
		r.Get("/definitions/{category}", h.Baseline.ListDefinitions)
		r.Get("/history/{category}/{id}", h.Baseline.History)
	})

	return r
}
