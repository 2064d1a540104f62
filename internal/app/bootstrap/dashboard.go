package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/agenda-dashboard/internal/catalog"
	appconfig "github.com/wolfman30/agenda-dashboard/internal/config"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/internal/floors"
	"github.com/wolfman30/agenda-dashboard/internal/observability/metrics"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

// Dashboard bundles the wired components shared by the server and the CLI.
type Dashboard struct {
	Catalog    *catalog.Client
	Floors     *floors.Cache
	Controller *dashboard.Controller
	Redis      *redis.Client
}

// BuildDashboard wires the catalog client, floor cache and controller. Metrics
// are registered on reg when it is non-nil. Nothing is fetched yet.
func BuildDashboard(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer) (*Dashboard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var (
		catalogMetrics *metrics.CatalogMetrics
		floorMetrics   *metrics.FloorCacheMetrics
	)
	if reg != nil {
		catalogMetrics = metrics.NewCatalogMetrics(reg)
		floorMetrics = metrics.NewFloorCacheMetrics(reg)
	}

	client, err := catalog.New(catalog.Config{
		BaseURL:      cfg.BackendBaseURL,
		Timeout:      cfg.RequestTimeout,
		ProbeTimeout: cfg.ProbeTimeout,
		Logger:       logger,
		Metrics:      catalogMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: catalog client: %w", err)
	}

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	cache, err := floors.New(floors.Config{
		Fetcher:         client,
		Store:           BuildFloorStore(redisClient),
		DefaultBuilding: catalog.Code(cfg.DefaultBuilding),
		Logger:          logger,
		Metrics:         floorMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: floor cache: %w", err)
	}

	ctrl, err := dashboard.New(dashboard.Config{
		Catalog:         client,
		Floors:          cache,
		DefaultBuilding: catalog.Code(cfg.DefaultBuilding),
		PageSize:        cfg.PageSize,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: controller: %w", err)
	}

	return &Dashboard{
		Catalog:    client,
		Floors:     cache,
		Controller: ctrl,
		Redis:      redisClient,
	}, nil
}

// Close waits for background floor fetches and releases Redis.
func (d *Dashboard) Close() error {
	d.Controller.Wait()
	if d.Redis != nil {
		return d.Redis.Close()
	}
	return nil
}
