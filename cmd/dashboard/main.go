package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/agenda-dashboard/internal/api/router"
	"github.com/wolfman30/agenda-dashboard/internal/app/bootstrap"
	appconfig "github.com/wolfman30/agenda-dashboard/internal/config"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/agenda-dashboard/internal/http/middleware"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting agenda dashboard",
		"env", cfg.Env,
		"port", cfg.Port,
		"backend", cfg.BackendBaseURL,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metricsHandler, registry := setupMetrics(cfg.MetricsEnabled)
	var reg prometheus.Registerer
	if registry != nil {
		reg = registry
	}
	app, err := bootstrap.BuildDashboard(ctx, cfg, logger, reg)
	if err != nil {
		logger.Error("failed to build dashboard", "error", err)
		os.Exit(1)
	}

	// The first load runs in the background so the page is served while the
	// backend is slow or down; the board shows the connection state.
	go initialLoad(ctx, app.Controller, logger)

	ui, err := handlers.NewBoardUI(app.Controller, logger)
	if err != nil {
		logger.Error("failed to build board ui", "error", err)
		os.Exit(1)
	}

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		Agenda:             handlers.NewAgendaHandler(app.Controller, logger),
		BoardUI:            ui,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if cfg.RateLimitRPS > 0 {
		routerCfg.RateLimiter = httpmiddleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	r := router.New(routerCfg)

	// Create HTTP server. No write timeout: saves wait on the backend for up
	// to API_TIMEOUT.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := app.Close(); err != nil {
		logger.Warn("closing dashboard resources", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics returns the /metrics handler and the registry components
// register on. Both are nil when metrics are disabled.
func setupMetrics(enabled bool) (http.Handler, *prometheus.Registry) {
	if !enabled {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), reg
}

// initialLoad connects and loads the catalog once. Failures are left on the
// board for the operator to retry.
func initialLoad(ctx context.Context, ctrl *dashboard.Controller, logger *logging.Logger) {
	if err := ctrl.Retry(ctx); err != nil {
		logger.Warn("initial load incomplete", "status", ctrl.Status(), "error", err)
		return
	}
	logger.Info("initial load complete")
}
