package cacheinfra

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/puzpuzpuz/xsync/v3"
)

// Interface assertion to ensure LRUStore implements cache.Store
var _ cache.Store = (*LRUStore)(nil)

// LRUStore is a sharded, size bounded store with idle expiry.
//
// Each shard keeps its own LRU list behind its own mutex; a key always
// maps to the same shard through QueryKey.Hash. The entry count is global:
// nothing is evicted until the whole store holds more than
// Config.Capacity entries, and the victim is then the least recently used
// entry across all shards.
type LRUStore struct {
	shards   []*shard
	inflight *xsync.MapOf[string, *flight]
	idle     time.Duration
	now      func() time.Time
	notifier notifier

	capacity int64
	count    atomic.Int64
	// clock orders accesses across shards for global LRU victim selection.
	clock   atomic.Uint64
	evictMu sync.Mutex

	stop      chan struct{}
	done      chan struct{}
	sweeping  bool
	closeOnce sync.Once
}

type entry struct {
	key      cache.QueryKey
	entities []cache.Entity
	accessed time.Time
	used     uint64
}

type shard struct {
	mu    sync.Mutex
	items *simplelru.LRU[string, *entry]

	// cause is attributed to evict callbacks fired while mu is held.
	cause   cache.RemovalCause
	pending []removal
}

// flight is an in-progress load shared by every caller missing the same key.
type flight struct {
	done     chan struct{}
	entities []cache.Entity
	err      error
}

// NewLRUStore validates cfg and builds an LRU backed store. When
// cfg.SweepInterval is positive a background sweeper runs until Close.
func NewLRUStore(cfg Config) (*LRUStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	numShards := min(cfg.NumShards, cfg.Capacity)

	s := &LRUStore{
		shards:   make([]*shard, numShards),
		inflight: xsync.NewMapOf[string, *flight](),
		idle:     cfg.IdleTimeout,
		now:      cfg.clock(),
		notifier: notifier{observer: cfg.Observer, logger: cfg.logger()},
		capacity: int64(cfg.Capacity),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	// Every shard may hold the whole capacity; the global count decides
	// when to evict.
	for i := range s.shards {
		sh, err := newShard(cfg.Capacity, &s.count)
		if err != nil {
			return nil, err
		}
		s.shards[i] = sh
	}

	if cfg.SweepInterval > 0 {
		s.sweeping = true
		go s.sweepLoop(cfg.SweepInterval)
	}

	return s, nil
}

func newShard(size int, count *atomic.Int64) (*shard, error) {
	sh := &shard{cause: cache.RemovalSize}
	items, err := simplelru.NewLRU[string, *entry](size, func(_ string, e *entry) {
		count.Add(-1)
		sh.pending = append(sh.pending, removal{key: e.key, cause: sh.cause})
	})
	if err != nil {
		return nil, fmt.Errorf("create shard of size %d: %w", size, err)
	}
	sh.items = items
	return sh, nil
}

func (s *LRUStore) shardFor(key cache.QueryKey) *shard {
	return s.shards[key.Hash()%uint64(len(s.shards))]
}

// GetOrLoad implements cache.Store.GetOrLoad.
// The first caller to miss a key becomes the leader and runs load; later
// callers for the same key wait for its outcome or for their own ctx.
func (s *LRUStore) GetOrLoad(ctx context.Context, key cache.QueryKey, load cache.LoadFunc) ([]cache.Entity, error) {
	if key.IsZero() {
		return nil, cache.ErrInvalidKey
	}
	if load == nil {
		return nil, cache.ErrNilLoader
	}

	if entities, ok := s.GetIfPresent(key); ok {
		return entities, nil
	}

	id := key.String()
	f := &flight{done: make(chan struct{})}
	if current, loaded := s.inflight.LoadOrStore(id, f); loaded {
		return current.wait(ctx)
	}

	s.lead(ctx, key, id, f, load)
	return f.entities, f.err
}

func (s *LRUStore) lead(ctx context.Context, key cache.QueryKey, id string, f *flight, load cache.LoadFunc) {
	defer func() {
		if r := recover(); r != nil {
			f.entities, f.err = nil, fmt.Errorf("%w: %v", cache.ErrLoaderPanic, r)
		}
		close(f.done)
		s.inflight.Delete(id)
	}()

	// A previous leader may have stored the key between our miss and
	// winning the registry slot.
	if entities, ok := s.GetIfPresent(key); ok {
		f.entities = entities
		return
	}

	f.entities, f.err = load(ctx, key)
	if f.err != nil {
		f.entities = nil
		return
	}
	s.Put(key, f.entities)
}

func (f *flight) wait(ctx context.Context) ([]cache.Entity, error) {
	select {
	case <-f.done:
		return f.entities, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetIfPresent implements cache.Store.GetIfPresent.
// A hit refreshes the entry's recency and idle clock; an idle entry is
// removed with cache.RemovalExpired and reported as a miss.
func (s *LRUStore) GetIfPresent(key cache.QueryKey) ([]cache.Entity, bool) {
	if key.IsZero() {
		return nil, false
	}

	sh := s.shardFor(key)
	id := key.String()

	sh.mu.Lock()
	now := s.now()
	e, ok := sh.items.Get(id)
	if ok && s.expired(e, now) {
		sh.removeLocked(id, cache.RemovalExpired)
		ok = false
	} else if ok {
		e.accessed = now
		e.used = s.clock.Add(1)
	}
	removals := sh.drain()
	sh.mu.Unlock()

	s.notifier.dispatch(removals)

	if !ok {
		return nil, false
	}
	return e.entities, true
}

// Put implements cache.Store.Put.
func (s *LRUStore) Put(key cache.QueryKey, entities []cache.Entity) {
	if key.IsZero() {
		return
	}

	sh := s.shardFor(key)
	id := key.String()

	sh.mu.Lock()
	now := s.now()
	if old, ok := sh.items.Peek(id); ok {
		cause := cache.RemovalReplaced
		if s.expired(old, now) {
			cause = cache.RemovalExpired
		}
		sh.pending = append(sh.pending, removal{key: old.key, cause: cause})
	} else {
		s.count.Add(1)
	}
	sh.items.Add(id, &entry{key: key, entities: slices.Clone(entities), accessed: now, used: s.clock.Add(1)})
	removals := sh.drain()
	sh.mu.Unlock()

	s.notifier.dispatch(removals)
	s.enforceCapacity()
}

// enforceCapacity evicts least recently used entries until the store is
// back within capacity. Shard locks are taken one at a time.
func (s *LRUStore) enforceCapacity() {
	if s.count.Load() <= s.capacity {
		return
	}

	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	for s.count.Load() > s.capacity {
		victim, id, ok := s.oldest()
		if !ok {
			return
		}

		victim.mu.Lock()
		if oldestID, e, found := victim.items.GetOldest(); found && oldestID == id {
			cause := cache.RemovalSize
			if s.expired(e, s.now()) {
				cause = cache.RemovalExpired
			}
			victim.removeLocked(id, cause)
		}
		removals := victim.drain()
		victim.mu.Unlock()

		s.notifier.dispatch(removals)
	}
}

// oldest finds the shard holding the least recently used entry.
func (s *LRUStore) oldest() (*shard, string, bool) {
	var (
		victim *shard
		id     string
		used   uint64
	)
	for _, sh := range s.shards {
		sh.mu.Lock()
		oldestID, e, ok := sh.items.GetOldest()
		sh.mu.Unlock()
		if ok && (victim == nil || e.used < used) {
			victim, id, used = sh, oldestID, e.used
		}
	}
	return victim, id, victim != nil
}

// Invalidate implements cache.Store.Invalidate.
func (s *LRUStore) Invalidate(key cache.QueryKey) {
	if key.IsZero() {
		return
	}

	sh := s.shardFor(key)

	sh.mu.Lock()
	sh.removeLocked(key.String(), cache.RemovalExplicit)
	removals := sh.drain()
	sh.mu.Unlock()

	s.notifier.dispatch(removals)
}

// InvalidateAll implements cache.Store.InvalidateAll.
// Shards are cleared one at a time; entries written to an already cleared
// shard while the call is in progress survive.
func (s *LRUStore) InvalidateAll() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.cause = cache.RemovalExplicit
		sh.items.Purge()
		sh.cause = cache.RemovalSize
		removals := sh.drain()
		sh.mu.Unlock()

		s.notifier.dispatch(removals)
	}
}

// Len implements cache.Store.Len. Idle entries not yet swept are counted.
func (s *LRUStore) Len() int {
	return int(s.count.Load())
}

// Sweep removes every idle entry and returns how many were removed.
func (s *LRUStore) Sweep() int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		now := s.now()
		for {
			id, e, ok := sh.items.GetOldest()
			if !ok || !s.expired(e, now) {
				break
			}
			sh.removeLocked(id, cache.RemovalExpired)
			removed++
		}
		removals := sh.drain()
		sh.mu.Unlock()

		s.notifier.dispatch(removals)
	}
	return removed
}

// Close stops the background sweeper. Entries stay readable.
func (s *LRUStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.sweeping {
			<-s.done
		}
	})
	return nil
}

func (s *LRUStore) sweepLoop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *LRUStore) expired(e *entry, now time.Time) bool {
	return now.Sub(e.accessed) > s.idle
}

func (sh *shard) removeLocked(id string, cause cache.RemovalCause) {
	sh.cause = cause
	sh.items.Remove(id)
	sh.cause = cache.RemovalSize
}

func (sh *shard) drain() []removal {
	pending := sh.pending
	sh.pending = nil
	return pending
}
