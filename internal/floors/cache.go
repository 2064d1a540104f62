package floors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/agenda-dashboard/internal/catalog"
	"github.com/wolfman30/agenda-dashboard/internal/observability/metrics"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

// Fetcher loads the floors of one building from the backend.
type Fetcher interface {
	ListFloors(ctx context.Context, building catalog.Code) ([]catalog.Floor, error)
}

// Store is an optional second tier shared between processes.
type Store interface {
	Load(ctx context.Context, building catalog.Code) ([]catalog.Floor, bool, error)
	Save(ctx context.Context, building catalog.Code, floors []catalog.Floor) error
}

// Config wires a Cache.
type Config struct {
	Fetcher         Fetcher
	Store           Store
	DefaultBuilding catalog.Code
	Logger          *logging.Logger
	Metrics         *metrics.FloorCacheMetrics
	// OnUpdate runs after a building's floors are stored for the first time.
	OnUpdate func(building catalog.Code)
}

// Cache memoizes floors per building. Entries are never invalidated; a
// failed fetch stores nothing so a later Get retries.
type Cache struct {
	fetcher         Fetcher
	store           Store
	defaultBuilding catalog.Code
	logger          *logging.Logger
	metrics         *metrics.FloorCacheMetrics

	mu       sync.RWMutex
	entries  map[catalog.Code][]catalog.Floor
	onUpdate func(catalog.Code)

	group singleflight.Group
}

// New creates a Cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("floors: fetcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		fetcher:         cfg.Fetcher,
		store:           cfg.Store,
		defaultBuilding: catalog.ParseCode(cfg.DefaultBuilding.String()),
		logger:          logger,
		metrics:         cfg.Metrics,
		entries:         make(map[catalog.Code][]catalog.Floor),
		onUpdate:        cfg.OnUpdate,
	}, nil
}

// SetOnUpdate replaces the update hook.
func (c *Cache) SetOnUpdate(fn func(catalog.Code)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// DefaultBuilding returns the designated default building key.
func (c *Cache) DefaultBuilding() catalog.Code {
	return c.defaultBuilding
}

// Sync returns cached floors only; empty when the building is not loaded.
func (c *Cache) Sync(building catalog.Code) []catalog.Floor {
	key := catalog.ParseCode(building.String())
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneFloors(c.entries[key])
}

// Default is Sync for the default building.
func (c *Cache) Default() []catalog.Floor {
	return c.Sync(c.defaultBuilding)
}

// Has reports whether the building has a cache entry (possibly empty).
func (c *Cache) Has(building catalog.Code) bool {
	key := catalog.ParseCode(building.String())
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// FloorName resolves a floor code within a building from cached data.
func (c *Cache) FloorName(building catalog.Code, floor int) (string, bool) {
	key := catalog.ParseCode(building.String())
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.entries[key] {
		if f.Code == floor {
			return f.Description, true
		}
	}
	return "", false
}

// FloorCode resolves a floor description within a building, ignoring case.
func (c *Cache) FloorCode(building catalog.Code, description string) (int, bool) {
	key := catalog.ParseCode(building.String())
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.entries[key] {
		if strings.EqualFold(strings.TrimSpace(f.Description), description) {
			return f.Code, true
		}
	}
	return 0, false
}

// Get returns cached floors, loading them on a miss. Concurrent misses for the
// same building share one backend call.
func (c *Cache) Get(ctx context.Context, building catalog.Code) ([]catalog.Floor, error) {
	key := catalog.ParseCode(building.String())
	if key == "" {
		return nil, errors.New("floors: building code is required")
	}
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.ObserveLookup("hit")
		return cloneFloors(cached), nil
	}
	c.metrics.ObserveLookup("miss")

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		return c.load(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return cloneFloors(v.([]catalog.Floor)), nil
}

func (c *Cache) load(ctx context.Context, key catalog.Code) ([]catalog.Floor, error) {
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if c.store != nil {
		stored, found, err := c.store.Load(ctx, key)
		if err != nil {
			c.logger.Warn("floors: shared store load failed", "building", key.String(), "error", err)
		} else if found {
			c.metrics.ObserveLookup("store_hit")
			c.put(key, stored)
			return stored, nil
		}
	}

	fetched, err := c.fetcher.ListFloors(ctx, key)
	if err != nil {
		c.metrics.ObserveLookup("fetch_error")
		return nil, fmt.Errorf("floors: load building %s: %w", key, err)
	}
	if fetched == nil {
		fetched = []catalog.Floor{}
	}
	c.put(key, fetched)
	if c.store != nil {
		if err := c.store.Save(ctx, key, fetched); err != nil {
			c.logger.Warn("floors: shared store save failed", "building", key.String(), "error", err)
		}
	}
	c.logger.Debug("floors: loaded", "building", key.String(), "count", len(fetched))
	return fetched, nil
}

func (c *Cache) put(key catalog.Code, floors []catalog.Floor) {
	c.mu.Lock()
	_, existed := c.entries[key]
	c.entries[key] = floors
	hook := c.onUpdate
	c.mu.Unlock()
	if !existed && hook != nil {
		hook(key)
	}
}

// Warm loads the default building first, when it is among buildings, and
// every other uncached building in its own goroutine. The returned channel closes once every fetch finished;
// callers are free to ignore it.
func (c *Cache) Warm(ctx context.Context, buildings []catalog.Code) <-chan struct{} {
	done := make(chan struct{})
	var g errgroup.Group

	seen := make(map[catalog.Code]struct{}, len(buildings)+1)
	schedule := func(key catalog.Code) {
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		if c.Has(key) {
			return
		}
		g.Go(func() error {
			if _, err := c.Get(ctx, key); err != nil {
				c.logger.Warn("floors: warm-up failed", "building", key.String(), "error", err)
			}
			return nil
		})
	}

	codes := make([]catalog.Code, 0, len(buildings))
	for _, b := range buildings {
		code := catalog.ParseCode(b.String())
		if code == c.defaultBuilding {
			schedule(code)
		}
		codes = append(codes, code)
	}
	for _, code := range codes {
		schedule(code)
	}

	go func() {
		_ = g.Wait()
		close(done)
	}()
	return done
}

func cloneFloors(in []catalog.Floor) []catalog.Floor {
	if in == nil {
		return []catalog.Floor{}
	}
	out := make([]catalog.Floor, len(in))
	copy(out, in)
	return out
}
