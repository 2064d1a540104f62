package floors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/agenda-dashboard/internal/catalog"
)

// RedisStore mirrors floor lists in Redis so several dashboard processes
// share one warm cache. Values never expire, matching the in-process cache.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed floor store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func (s *RedisStore) key(building catalog.Code) string {
	return fmt.Sprintf("agenda:floors:%s", building)
}

// Load returns the stored floors for a building.
func (s *RedisStore) Load(ctx context.Context, building catalog.Code) ([]catalog.Floor, bool, error) {
	data, err := s.redis.Get(ctx, s.key(building)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("floors: get: %w", err)
	}

	var floors []catalog.Floor
	if err := json.Unmarshal(data, &floors); err != nil {
		return nil, false, fmt.Errorf("floors: unmarshal: %w", err)
	}
	if floors == nil {
		floors = []catalog.Floor{}
	}
	return floors, true, nil
}

// Save stores the floors for a building.
func (s *RedisStore) Save(ctx context.Context, building catalog.Code, floors []catalog.Floor) error {
	data, err := json.Marshal(floors)
	if err != nil {
		return fmt.Errorf("floors: marshal: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(building), data, 0).Err(); err != nil {
		return fmt.Errorf("floors: set: %w", err)
	}
	return nil
}
