package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/agenda-dashboard/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/agenda-dashboard/internal/http/middleware"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Agenda             *handlers.AgendaHandler
	BoardUI            *handlers.BoardUI
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// RateLimiter throttles mutating API and UI calls when set.
	RateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	// Public endpoints (health checks, metrics)
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.Agenda.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Group(func(app chi.Router) {
		if cfg.RateLimiter != nil {
			app.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		app.Mount("/api", cfg.Agenda.Routes())
		if cfg.BoardUI != nil {
			app.Get("/", cfg.BoardUI.Page)
			app.Mount("/ui", cfg.BoardUI.Routes())
		}
	})

	return r
}
