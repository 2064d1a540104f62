package floors

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/agenda-dashboard/internal/catalog"
	"github.com/wolfman30/agenda-dashboard/internal/observability/metrics"
	"github.com/wolfman30/agenda-dashboard/pkg/logging"
)

type stubFetcher struct {
	mu     sync.Mutex
	calls  map[catalog.Code]int
	floors map[catalog.Code][]catalog.Floor
	fail   map[catalog.Code]error
	gate   chan struct{}
	order  []catalog.Code
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		calls:  map[catalog.Code]int{},
		floors: map[catalog.Code][]catalog.Floor{},
		fail:   map[catalog.Code]error{},
	}
}

func (s *stubFetcher) ListFloors(ctx context.Context, building catalog.Code) ([]catalog.Floor, error) {
	s.mu.Lock()
	s.calls[building]++
	s.order = append(s.order, building)
	gate := s.gate
	err := s.fail[building]
	floors := s.floors[building]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return floors, nil
}

func (s *stubFetcher) callCount(building catalog.Code) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[building]
}

func newTestCache(t *testing.T, fetcher Fetcher, store Store) *Cache {
	t.Helper()
	cache, err := New(Config{
		Fetcher:         fetcher,
		Store:           store,
		DefaultBuilding: "2",
		Logger:          logging.Discard(),
		Metrics:         metrics.NewFloorCacheMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return cache
}

func TestNewRequiresFetcher(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestSyncIsCacheOnly(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.floors["1"] = []catalog.Floor{{Code: 7, Description: "Third Floor"}}
	cache := newTestCache(t, fetcher, nil)

	assert.Empty(t, cache.Sync("1"))
	assert.False(t, cache.Has("1"))
	assert.Equal(t, 0, fetcher.callCount("1"))

	floors, err := cache.Get(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, floors, 1)
	assert.Equal(t, floors, cache.Sync("1"))

	name, ok := cache.FloorName("1", 7)
	assert.True(t, ok)
	assert.Equal(t, "Third Floor", name)

	code, ok := cache.FloorCode("1", "THIRD FLOOR")
	assert.True(t, ok)
	assert.Equal(t, 7, code)
}

func TestGetCachesAndCanonicalizesKeys(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.floors["2"] = []catalog.Floor{{Code: 1, Description: "Ground"}}
	cache := newTestCache(t, fetcher, nil)

	_, err := cache.Get(context.Background(), "2")
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), catalog.ParseCode(" 2.0 "))
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.callCount("2"))
	assert.Len(t, cache.Default(), 1)
	assert.True(t, cache.Has(catalog.CodeFromInt(2)))
}

func TestGetDoesNotCacheFailures(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.fail["3"] = errors.New("boom")
	cache := newTestCache(t, fetcher, nil)

	_, err := cache.Get(context.Background(), "3")
	require.Error(t, err)
	assert.False(t, cache.Has("3"))

	fetcher.mu.Lock()
	delete(fetcher.fail, "3")
	fetcher.floors["3"] = []catalog.Floor{{Code: 1, Description: "Lobby"}}
	fetcher.mu.Unlock()

	floors, err := cache.Get(context.Background(), "3")
	require.NoError(t, err)
	assert.Len(t, floors, 1)
	assert.Equal(t, 2, fetcher.callCount("3"))
}

func TestEmptyResultIsCached(t *testing.T) {
	fetcher := newStubFetcher()
	cache := newTestCache(t, fetcher, nil)

	floors, err := cache.Get(context.Background(), "9")
	require.NoError(t, err)
	assert.Empty(t, floors)
	assert.True(t, cache.Has("9"))
}

func TestConcurrentGetSharesOneFetch(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.floors["4"] = []catalog.Floor{{Code: 1, Description: "Ground"}}
	fetcher.gate = make(chan struct{})
	cache := newTestCache(t, fetcher, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Get(context.Background(), "4")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	assert.Equal(t, 1, fetcher.callCount("4"))
}

func TestWarmLoadsDefaultFirstAndEveryBuilding(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.floors["1"] = []catalog.Floor{{Code: 1, Description: "A"}}
	fetcher.floors["2"] = []catalog.Floor{{Code: 1, Description: "B"}}
	fetcher.floors["5"] = []catalog.Floor{{Code: 1, Description: "C"}}
	fetcher.fail["6"] = errors.New("offline")

	var updates atomic.Int32
	cache := newTestCache(t, fetcher, nil)
	cache.SetOnUpdate(func(catalog.Code) { updates.Add(1) })

	done := cache.Warm(context.Background(), []catalog.Code{"1", "2", "5", "6", ""})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("warm-up did not finish")
	}

	for _, b := range []catalog.Code{"1", "2", "5"} {
		assert.True(t, cache.Has(b), "building %s", b)
		assert.Equal(t, 1, fetcher.callCount(b))
	}
	assert.False(t, cache.Has("6"))
	assert.EqualValues(t, 3, updates.Load())
}

func TestWarmSkipsMissingDefaultBuilding(t *testing.T) {
	fetcher := newStubFetcher()
	fetcher.floors["1"] = []catalog.Floor{{Code: 1, Description: "A"}}
	cache := newTestCache(t, fetcher, nil)

	<-cache.Warm(context.Background(), []catalog.Code{"1"})
	assert.True(t, cache.Has("1"))
	assert.Zero(t, fetcher.callCount("2"))
	assert.False(t, cache.Has("2"))
}

func TestWarmSkipsCachedBuildings(t *testing.T) {
	fetcher := newStubFetcher()
	cache := newTestCache(t, fetcher, nil)
	_, err := cache.Get(context.Background(), "2")
	require.NoError(t, err)

	<-cache.Warm(context.Background(), []catalog.Code{"2"})
	assert.Equal(t, 1, fetcher.callCount("2"))
}

func TestRedisStoreSharesFloors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)

	fetcher := newStubFetcher()
	fetcher.floors["2"] = []catalog.Floor{{Code: 3, BuildingCode: "2", Description: "Third"}}
	first := newTestCache(t, fetcher, store)
	_, err := first.Get(context.Background(), "2")
	require.NoError(t, err)
	assert.True(t, mr.Exists("agenda:floors:2"))
	assert.Equal(t, time.Duration(0), mr.TTL("agenda:floors:2"))

	other := newStubFetcher()
	second := newTestCache(t, other, store)
	floors, err := second.Get(context.Background(), "2")
	require.NoError(t, err)
	require.Len(t, floors, 1)
	assert.Equal(t, "Third", floors[0].Description)
	assert.Equal(t, 0, other.callCount("2"))
}

func TestRedisStoreMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	floors, found, err := store.Load(context.Background(), "8")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, floors)

	mr.Set("agenda:floors:8", "not-json")
	_, _, err = store.Load(context.Background(), "8")
	assert.Error(t, err)
}
