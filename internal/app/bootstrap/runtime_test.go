package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/agenda-dashboard/internal/config"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard"
	"github.com/wolfman30/agenda-dashboard/internal/dashboard/dashboardtest"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

func TestBuildRedisClientDisabledReturnsNil(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
	if client := BuildRedisClient(context.Background(), nil, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client for nil config")
	}
}

func TestBuildRedisClientUnreachableReturnsNil(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &appconfig.Config{RedisAddr: addr}
	if client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true); client != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildFloorStoreWithoutRedis(t *testing.T) {
	if store := BuildFloorStore(nil); store != nil {
		t.Fatalf("expected nil store")
	}
}

func TestBuildDashboardRequiresConfig(t *testing.T) {
	if _, err := BuildDashboard(context.Background(), nil, logging.Discard(), nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildDashboardMirrorsFloorsInRedis(t *testing.T) {
	backend := dashboardtest.NewBackend(t)
	mr := miniredis.RunT(t)

	cfg := &appconfig.Config{
		BackendBaseURL:  backend.URL(),
		RequestTimeout:  2 * time.Second,
		ProbeTimeout:    time.Second,
		DefaultBuilding: "2",
		PageSize:        10,
		RedisAddr:       mr.Addr(),
	}
	d, err := BuildDashboard(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if d.Redis == nil {
		t.Fatalf("expected redis client")
	}

	if err := d.Controller.Retry(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	d.Controller.Wait()

	if got := d.Controller.Status(); got != dashboard.StatusConnected {
		t.Fatalf("expected connected, got %s", got)
	}
	for _, key := range []string{"agenda:floors:1", "agenda:floors:2"} {
		if !mr.Exists(key) {
			t.Fatalf("expected %s to be mirrored", key)
		}
	}
}
