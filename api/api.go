// Package api exposes a read-only HTTP projection of the timesheet
// pipeline: queue and deletion statistics plus per-employee listings.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/adiazcan/timesheet-speck-kit-sub001/engine"
)

// API wires the HTTP handlers to an Engine.
type API struct {
	eng     *engine.Engine
	origins []string
	logger  *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithAllowedOrigins sets the CORS origins. Defaults to "*".
func WithAllowedOrigins(origins ...string) Option {
	return func(a *API) { a.origins = origins }
}

// WithLogger sets the logger used for handler errors.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API over eng.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{
		eng:     eng,
		origins: []string{"*"},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all routes into r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", a.stats)
		r.Route("/employees/{employeeID}", func(r chi.Router) {
			r.Get("/stats", a.employeeStats)
			r.Get("/queue", a.employeeQueue)
			r.Get("/deletions", a.employeeDeletions)
			r.Get("/deletions/pending", a.pendingDeletion)
			r.Get("/deletions/{requestID}", a.getDeletion)
		})
	})
}
