// Package router assembles the chi mux for the HTTP surface: document
// submission, status/extraction/metrics polling, health, and the
// Prometheus scrape endpoint.
package router

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/docpipeline/docpipeline/internal/config"
	"github.com/docpipeline/docpipeline/internal/handler"
	"github.com/docpipeline/docpipeline/internal/middleware"
)

// New builds the application mux, wiring chi's request-id/recoverer
// middleware ahead of the structured-logging, CORS, and Prometheus
// instrumentation layers.
func New(deps *handler.Dependencies, cfg *config.Config, metrics *middleware.Metrics, reg *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging)
	r.Use(middleware.Monitoring(metrics))
	if cfg.CORSAllowedOrigin != "" {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigin))
	}

	r.Get("/health", deps.Health)
	r.Handle("/metrics", middleware.MetricsHandler(reg))

	r.Route("/api/v1/documents", func(r chi.Router) {
		// Submission streams a multipart upload whose size is bounded by
		// StorageMaxFileSizeMB, not by request latency, so it is exempt
		// from the slow-read timeout applied to the polling endpoints.
		r.Post("/", deps.SubmitDocument)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.HTTPRequestTimeout))
			r.Get("/{id}/status", deps.DocumentStatus)
			r.Get("/{id}/extractions", deps.DocumentExtractions)
			r.Get("/{id}/metrics", deps.DocumentMetrics)
		})
	})

	return r
}
