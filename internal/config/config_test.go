package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "API_URL", "API_TIMEOUT", "API_PROBE_TIMEOUT", "DEFAULT_BUILDING", "PAGE_SIZE", "REDIS_ADDR", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BackendBaseURL != "http://localhost:3001" {
		t.Fatalf("expected default backend url, got %s", cfg.BackendBaseURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Fatalf("expected 5s probe timeout, got %s", cfg.ProbeTimeout)
	}
	if cfg.DefaultBuilding != "2" {
		t.Fatalf("expected default building 2, got %s", cfg.DefaultBuilding)
	}
	if cfg.PageSize != 10 {
		t.Fatalf("expected page size 10, got %d", cfg.PageSize)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected redis disabled by default, got %s", cfg.RedisAddr)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no cors origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_URL", "http://backend:3001/")
	t.Setenv("API_TIMEOUT", "10s")
	t.Setenv("DEFAULT_BUILDING", " 7 ")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("METRICS_ENABLED", "false")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.BackendBaseURL != "http://backend:3001" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.BackendBaseURL)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.RequestTimeout)
	}
	if cfg.DefaultBuilding != "7" {
		t.Fatalf("expected building override, got %q", cfg.DefaultBuilding)
	}
	if cfg.PageSize != 25 {
		t.Fatalf("expected page size override, got %d", cfg.PageSize)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("expected redis override, got %s", cfg.RedisAddr)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Fatalf("expected rps override, got %v", cfg.RateLimitRPS)
	}
	if cfg.MetricsEnabled {
		t.Fatalf("expected metrics disabled")
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PAGE_SIZE", "many")
	t.Setenv("API_PROBE_TIMEOUT", "soon")
	cfg := Load()
	if cfg.PageSize != 10 {
		t.Fatalf("expected fallback page size, got %d", cfg.PageSize)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Fatalf("expected fallback probe timeout, got %s", cfg.ProbeTimeout)
	}
}
