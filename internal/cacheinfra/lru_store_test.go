package cacheinfra

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-accelo-cache/cache"
	"go.uber.org/zap"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

func newTestStore(t *testing.T, mutate func(*Config)) (*LRUStore, *recordingObserver, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	obs := &recordingObserver{}

	cfg := DefaultConfig()
	cfg.NumShards = 4
	cfg.SweepInterval = 0
	cfg.Observer = obs
	cfg.Now = clock.Now
	if mutate != nil {
		mutate(&cfg)
	}

	store, err := NewLRUStore(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, obs, clock
}

func TestNewLRUStore_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0

	store, err := NewLRUStore(cfg)
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if store != nil {
		t.Error("expected store to be nil when error occurs")
	}

	expected := "config error in field Capacity: must be greater than 0"
	if err.Error() != expected {
		t.Errorf("expected error message %q, got %q", expected, err.Error())
	}
}

func TestLRUStore_GetOrLoad(t *testing.T) {
	store, _, _ := newTestStore(t, nil)
	ctx := context.Background()

	t.Run("cache miss - load function called", func(t *testing.T) {
		calls := 0
		got, err := store.GetOrLoad(ctx, testKey(1), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
			calls++
			return rows(1, 2), nil
		})
		if err != nil {
			t.Fatalf("expected no error but got: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected load to be called once, got %d", calls)
		}
		if len(got) != 2 || got[0].EntityID() != 1 || got[1].EntityID() != 2 {
			t.Errorf("unexpected rows: %v", got)
		}
	})

	t.Run("cache hit - load function not called", func(t *testing.T) {
		got, err := store.GetOrLoad(ctx, testKey(1), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
			t.Error("load should not be called on a hit")
			return nil, nil
		})
		if err != nil {
			t.Fatalf("expected no error but got: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected cached rows, got %v", got)
		}
	})

	t.Run("load error is returned and not cached", func(t *testing.T) {
		loadErr := errors.New("remote unavailable")
		_, err := store.GetOrLoad(ctx, testKey(2), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
			return nil, loadErr
		})
		if !errors.Is(err, loadErr) {
			t.Fatalf("expected %v, got %v", loadErr, err)
		}
		if _, ok := store.GetIfPresent(testKey(2)); ok {
			t.Error("failed load must not create an entry")
		}

		calls := 0
		_, err = store.GetOrLoad(ctx, testKey(2), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
			calls++
			return rows(3), nil
		})
		if err != nil || calls != 1 {
			t.Errorf("expected retry to load again, calls=%d err=%v", calls, err)
		}
	})

	t.Run("load panic is converted to an error", func(t *testing.T) {
		_, err := store.GetOrLoad(ctx, testKey(3), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
			panic("boom")
		})
		if !errors.Is(err, cache.ErrLoaderPanic) {
			t.Errorf("expected ErrLoaderPanic, got %v", err)
		}
	})

	t.Run("nil load function", func(t *testing.T) {
		if _, err := store.GetOrLoad(ctx, testKey(4), nil); !errors.Is(err, cache.ErrNilLoader) {
			t.Errorf("expected ErrNilLoader, got %v", err)
		}
	})

	t.Run("zero key", func(t *testing.T) {
		_, err := store.GetOrLoad(ctx, cache.QueryKey{}, func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
			return nil, nil
		})
		if !errors.Is(err, cache.ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey, got %v", err)
		}
	})
}

func TestLRUStore_SingleFlight(t *testing.T) {
	store, _, _ := newTestStore(t, nil)
	ctx := context.Background()

	const callers = 32
	var loads atomic.Int32
	gate := make(chan struct{})
	started := make(chan struct{})

	load := func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
		if loads.Add(1) == 1 {
			close(started)
		}
		<-gate
		return rows(1, 2), nil
	}

	results := make([][]cache.Entity, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.GetOrLoad(ctx, testKey(1), load)
		}(i)
	}

	<-started
	// give the remaining callers time to join the flight
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := loads.Load(); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error %v", i, errs[i])
		}
		if len(results[i]) != 2 || results[i][0] != results[0][0] || results[i][1] != results[0][1] {
			t.Errorf("caller %d: expected identical rows, got %v", i, results[i])
		}
	}
}

func TestLRUStore_SingleFlightSharesFailure(t *testing.T) {
	store, _, _ := newTestStore(t, nil)
	ctx := context.Background()

	const callers = 8
	loadErr := errors.New("remote unavailable")
	var loads atomic.Int32
	gate := make(chan struct{})
	started := make(chan struct{})

	load := func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
		if loads.Add(1) == 1 {
			close(started)
		}
		<-gate
		return nil, loadErr
	}

	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.GetOrLoad(ctx, testKey(1), load)
		}(i)
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := loads.Load(); got < 1 {
		t.Fatalf("expected at least one load, got %d", got)
	}
	for i, err := range errs {
		if !errors.Is(err, loadErr) {
			t.Errorf("caller %d: expected %v, got %v", i, loadErr, err)
		}
	}
	if _, ok := store.GetIfPresent(testKey(1)); ok {
		t.Error("failure must not be cached")
	}
}

func TestLRUStore_WaiterHonoursContext(t *testing.T) {
	store, _, _ := newTestStore(t, nil)

	gate := make(chan struct{})
	started := make(chan struct{})
	leaderDone := make(chan struct{})

	go func() {
		defer close(leaderDone)
		store.GetOrLoad(context.Background(), testKey(1), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
			close(started)
			<-gate
			return rows(1), nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := store.GetOrLoad(ctx, testKey(1), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
		t.Error("waiter must not start a second load")
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(gate)
	<-leaderDone

	if _, ok := store.GetIfPresent(testKey(1)); !ok {
		t.Error("leader result should be cached after waiter gave up")
	}
}

func TestLRUStore_UnrelatedKeysDoNotBlock(t *testing.T) {
	store, _, _ := newTestStore(t, nil)
	ctx := context.Background()

	gate := make(chan struct{})
	defer close(gate)
	started := make(chan struct{})

	go store.GetOrLoad(ctx, testKey(1), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
		close(started)
		<-gate
		return rows(1), nil
	})
	<-started

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.GetOrLoad(ctx, testKey(2), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
			return rows(2), nil
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("load of an unrelated key was blocked by a stalled fetch")
	}
}

func TestLRUStore_IdleExpiry(t *testing.T) {
	store, obs, clock := newTestStore(t, func(c *Config) {
		c.IdleTimeout = 10 * time.Minute
	})

	store.Put(testKey(1), rows(1))
	store.Put(testKey(2), rows(2))

	clock.Advance(6 * time.Minute)
	if _, ok := store.GetIfPresent(testKey(1)); !ok {
		t.Fatal("expected entry 1 to be present before idle timeout")
	}

	clock.Advance(5 * time.Minute)

	if _, ok := store.GetIfPresent(testKey(1)); !ok {
		t.Error("access should have reset the idle clock for entry 1")
	}
	if _, ok := store.GetIfPresent(testKey(2)); ok {
		t.Error("expected entry 2 to have expired")
	}
	if got := obs.count(cache.RemovalExpired); got != 1 {
		t.Errorf("expected 1 expired notification, got %d", got)
	}

	calls := 0
	store.GetOrLoad(context.Background(), testKey(2), func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
		calls++
		return rows(2), nil
	})
	if calls != 1 {
		t.Errorf("expected expired entry to trigger a load, got %d calls", calls)
	}
}

func TestLRUStore_Sweep(t *testing.T) {
	store, obs, clock := newTestStore(t, nil)

	for i := 0; i < 5; i++ {
		store.Put(testKey(i), rows(i))
	}
	clock.Advance(5 * time.Minute)
	store.Put(testKey(99), rows(99))
	clock.Advance(6 * time.Minute)

	if removed := store.Sweep(); removed != 5 {
		t.Errorf("expected 5 entries swept, got %d", removed)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", store.Len())
	}
	if got := obs.count(cache.RemovalExpired); got != 5 {
		t.Errorf("expected 5 expired notifications, got %d", got)
	}
}

func TestLRUStore_BackgroundSweeper(t *testing.T) {
	obs := &recordingObserver{}
	cfg := DefaultConfig()
	cfg.IdleTimeout = 20 * time.Millisecond
	cfg.SweepInterval = 5 * time.Millisecond
	cfg.Observer = obs

	store, err := NewLRUStore(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	store.Put(testKey(1), rows(1))

	deadline := time.Now().Add(time.Second)
	for store.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Len() != 0 {
		t.Fatal("expected background sweeper to remove the idle entry")
	}
	if obs.count(cache.RemovalExpired) != 1 {
		t.Errorf("expected an expired notification, got %v", obs.get())
	}
}

func TestLRUStore_CapacityEviction(t *testing.T) {
	store, obs, clock := newTestStore(t, func(c *Config) {
		c.Capacity = 3
		c.NumShards = 1
	})

	store.Put(testKey(1), rows(1))
	clock.Advance(time.Second)
	store.Put(testKey(2), rows(2))
	clock.Advance(time.Second)
	store.Put(testKey(3), rows(3))
	clock.Advance(time.Second)

	// touch 1 so 2 becomes the least recently used entry
	store.GetIfPresent(testKey(1))
	store.Put(testKey(4), rows(4))

	if store.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", store.Len())
	}
	if _, ok := store.GetIfPresent(testKey(2)); ok {
		t.Error("expected least recently used entry 2 to be evicted")
	}
	for _, i := range []int{1, 3, 4} {
		if _, ok := store.GetIfPresent(testKey(i)); !ok {
			t.Errorf("expected entry %d to be present", i)
		}
	}

	removals := obs.get()
	if len(removals) != 1 || removals[0].cause != cache.RemovalSize || removals[0].key != testKey(2).String() {
		t.Errorf("expected one size eviction of key 2, got %v", removals)
	}
}

func TestLRUStore_CapacityNeverExceededAcrossShards(t *testing.T) {
	store, obs, _ := newTestStore(t, func(c *Config) {
		c.Capacity = 10
		c.NumShards = 4
	})

	for i := 0; i < 100; i++ {
		store.Put(testKey(i), rows(i))
		if store.Len() > 10 {
			t.Fatalf("store grew beyond capacity: %d", store.Len())
		}
	}
	if got := obs.count(cache.RemovalSize); got != 100-store.Len() {
		t.Errorf("expected %d size evictions, got %d", 100-store.Len(), got)
	}
}

func TestLRUStore_FillsToCapacityBeforeEvicting(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
	}{
		{"small capacity", 100},
		{"default capacity", DefaultConfig().Capacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, obs, _ := newTestStore(t, func(c *Config) {
				c.Capacity = tt.capacity
				c.NumShards = DefaultConfig().NumShards
			})

			for i := 0; i < tt.capacity; i++ {
				store.Put(testKey(i), rows(i))
			}

			if store.Len() != tt.capacity {
				t.Errorf("expected %d entries, got %d", tt.capacity, store.Len())
			}
			if got := obs.count(cache.RemovalSize); got != 0 {
				t.Fatalf("expected no evictions below capacity, got %d", got)
			}
			for i := 0; i < tt.capacity; i++ {
				if _, ok := store.GetIfPresent(testKey(i)); !ok {
					t.Fatalf("expected entry %d to be present", i)
				}
			}

			// one more entry evicts exactly one
			store.Put(testKey(tt.capacity), rows(tt.capacity))
			if store.Len() != tt.capacity {
				t.Errorf("expected %d entries after overflow, got %d", tt.capacity, store.Len())
			}
			if got := obs.count(cache.RemovalSize); got != 1 {
				t.Errorf("expected a single eviction, got %d", got)
			}
		})
	}
}

func TestLRUStore_EvictsLeastRecentlyUsedAcrossShards(t *testing.T) {
	store, obs, _ := newTestStore(t, func(c *Config) {
		c.Capacity = 8
		c.NumShards = 8
	})

	for i := 0; i < 8; i++ {
		store.Put(testKey(i), rows(i))
	}
	// every entry but 5 is read again, so 5 is the global LRU entry
	for i := 0; i < 8; i++ {
		if i != 5 {
			store.GetIfPresent(testKey(i))
		}
	}

	store.Put(testKey(8), rows(8))

	removals := obs.get()
	if len(removals) != 1 || removals[0].key != testKey(5).String() || removals[0].cause != cache.RemovalSize {
		t.Fatalf("expected size eviction of key 5, got %v", removals)
	}
	for _, i := range []int{0, 1, 2, 3, 4, 6, 7, 8} {
		if _, ok := store.GetIfPresent(testKey(i)); !ok {
			t.Errorf("expected entry %d to be present", i)
		}
	}
}

func TestLRUStore_LenTracksRemovals(t *testing.T) {
	store, _, _ := newTestStore(t, nil)

	for i := 0; i < 6; i++ {
		store.Put(testKey(i), rows(i))
	}
	store.Put(testKey(0), rows(0, 1))
	store.Invalidate(testKey(1))

	if store.Len() != 5 {
		t.Errorf("expected 5 entries, got %d", store.Len())
	}
	store.InvalidateAll()
	if store.Len() != 0 {
		t.Errorf("expected an empty store, got %d", store.Len())
	}
}

func TestLRUStore_ShardsClampedToCapacity(t *testing.T) {
	store, _, _ := newTestStore(t, func(c *Config) {
		c.Capacity = 2
		c.NumShards = 64
	})

	if len(store.shards) != 2 {
		t.Errorf("expected shards to be clamped to capacity, got %d", len(store.shards))
	}
}

func TestLRUStore_PutReplaces(t *testing.T) {
	store, obs, _ := newTestStore(t, nil)

	store.Put(testKey(1), rows(1))
	store.Put(testKey(1), rows(1, 2))

	got, ok := store.GetIfPresent(testKey(1))
	if !ok || len(got) != 2 {
		t.Errorf("expected replaced rows, got %v", got)
	}
	if obs.count(cache.RemovalReplaced) != 1 {
		t.Errorf("expected a replaced notification, got %v", obs.get())
	}
}

func TestLRUStore_PutCopiesInput(t *testing.T) {
	store, _, _ := newTestStore(t, nil)

	input := rows(1, 2)
	store.Put(testKey(1), input)
	input[0] = &row{ID: 42}

	got, _ := store.GetIfPresent(testKey(1))
	if got[0].EntityID() != 1 {
		t.Error("store must not alias the caller's slice")
	}
}

func TestLRUStore_Invalidate(t *testing.T) {
	store, obs, _ := newTestStore(t, nil)

	store.Put(testKey(1), rows(1))
	store.Put(testKey(2), rows(2))

	store.Invalidate(testKey(1))
	store.Invalidate(testKey(1))

	if _, ok := store.GetIfPresent(testKey(1)); ok {
		t.Error("expected entry 1 to be invalidated")
	}
	if _, ok := store.GetIfPresent(testKey(2)); !ok {
		t.Error("expected entry 2 to remain")
	}
	if got := obs.count(cache.RemovalExplicit); got != 1 {
		t.Errorf("expected a single explicit notification, got %d", got)
	}
}

func TestLRUStore_InvalidateAll(t *testing.T) {
	store, obs, _ := newTestStore(t, nil)

	for i := 0; i < 10; i++ {
		store.Put(testKey(i), rows(i))
	}
	store.InvalidateAll()

	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d entries", store.Len())
	}
	if got := obs.count(cache.RemovalExplicit); got != 10 {
		t.Errorf("expected 10 explicit notifications, got %d", got)
	}
}

func TestLRUStore_ObserverPanicIsContained(t *testing.T) {
	core, logs := zapobserver.New(zap.ErrorLevel)

	cfg := DefaultConfig()
	cfg.SweepInterval = 0
	cfg.Logger = zap.New(core)
	cfg.Observer = cache.ObserverFunc(func(key cache.QueryKey, cause cache.RemovalCause) {
		panic("observer failure")
	})

	store, err := NewLRUStore(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	store.Put(testKey(1), rows(1))
	store.Invalidate(testKey(1))

	if _, ok := store.GetIfPresent(testKey(1)); ok {
		t.Error("invalidation must complete even when the observer panics")
	}
	if got := logs.FilterMessage("eviction observer panicked").Len(); got != 1 {
		t.Errorf("expected the panic to be logged once, got %d", got)
	}

	store.Put(testKey(2), rows(2))
	if _, ok := store.GetIfPresent(testKey(2)); !ok {
		t.Error("store should keep working after an observer panic")
	}
}

func TestLRUStore_ObserverMayReenterStore(t *testing.T) {
	var store *LRUStore
	cfg := DefaultConfig()
	cfg.SweepInterval = 0
	cfg.Observer = cache.ObserverFunc(func(key cache.QueryKey, cause cache.RemovalCause) {
		store.GetIfPresent(key)
		store.Len()
	})

	var err error
	store, err = NewLRUStore(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Put(testKey(1), rows(1))
		store.Invalidate(testKey(1))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer calling back into the store deadlocked")
	}
}

func TestLRUStore_CloseIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Millisecond

	store, err := NewLRUStore(cfg)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
