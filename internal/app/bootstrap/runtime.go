package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/agenda-dashboard/internal/config"
	"github.com/wolfman30/agenda-dashboard/internal/floors"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, floor cache stays in memory", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildFloorStore returns the shared floor mirror, or nil without Redis.
func BuildFloorStore(redisClient *redis.Client) floors.Store {
	if redisClient == nil {
		return nil
	}
	return floors.NewRedisStore(redisClient)
}
