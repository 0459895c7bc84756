// Package api assembles the HTTP router of the OPTIMADE index server.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stacklok/optimade-server/internal/api/health"
	"github.com/stacklok/optimade-server/internal/api/index"
	"github.com/stacklok/optimade-server/internal/versions"
)

// ServerOption configures the API server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	allowedOrigins []string
	metricsHandler http.Handler
	ready          health.ReadinessFunc
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithAllowedOrigins sets the CORS origins. Every origin is allowed by default.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.allowedOrigins = origins
	}
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithReadiness sets the readiness check behind /readiness
func WithReadiness(ready health.ReadinessFunc) ServerOption {
	return func(cfg *serverConfig) {
		cfg.ready = ready
	}
}

// NewServer creates the router serving routes under the unversioned base URL and
// under /vMAJOR, /vMAJOR.MINOR and /vMAJOR.MINOR.PATCH
func NewServer(routes *index.Routes, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.NotFound(routes.NotFound)

	health.Register(r, cfg.ready)
	if cfg.metricsHandler != nil {
		r.Handle("/metrics", cfg.metricsHandler)
	}

	r.Get("/versions", index.VersionsHandler)
	routes.Register(r)
	for _, prefix := range versions.APIPrefixes().All() {
		r.Route(prefix, routes.Register)
	}
	r.HandleFunc("/{version:v[0-9.]+}", routes.VersionNotSupported)
	r.HandleFunc("/{version:v[0-9.]+}/*", routes.VersionNotSupported)

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
