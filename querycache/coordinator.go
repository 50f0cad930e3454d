package querycache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/goliatone/go-accelo-cache/filter"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Fetcher executes a remote query and decodes its rows. It never caches.
type Fetcher interface {
	FetchAll(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error)

// FetchAll implements Fetcher.
func (f FetcherFunc) FetchAll(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
	return f(ctx, key)
}

// IdentityFilterFunc builds the filter selecting a single record by id.
type IdentityFilterFunc func(id int) cache.Filter

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for misses and fetch failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records hits, misses and fetches on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithIdentityFilter overrides how identity keys are built. Defaults to
// filter.ByID.
func WithIdentityFilter(fn IdentityFilterFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.identity = fn
		}
	}
}

// Coordinator implements the cache-aware query semantics on top of a
// cache.Store: identity back-fill, forced refresh with reconciliation of
// stale identity rows, and miss accounting.
//
// A Coordinator is safe for concurrent use. Create one per process and
// inject it into the data access objects.
type Coordinator struct {
	store    cache.Store
	fetcher  Fetcher
	logger   *zap.Logger
	metrics  *Metrics
	identity IdentityFilterFunc

	misses atomic.Int64

	// shapes remembers every (row type, collection, fields) combination
	// that produced identity rows, keyed by shapeID.
	shapes *xsync.MapOf[string, cache.QueryKey]
}

// New creates a Coordinator over store, loading misses through fetcher.
func New(store cache.Store, fetcher Fetcher, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	c := &Coordinator{
		store:    store,
		fetcher:  fetcher,
		logger:   zap.NewNop(),
		identity: func(id int) cache.Filter { return filter.ByID(id) },
		shapes:   xsync.NewMapOf[string, cache.QueryKey](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the rows for key.
//
// A cached entry is returned as is unless the key's filter requests a
// refresh. On a cold miss the fetcher is called once for all concurrent
// callers. On a refresh the old entry is dropped, the query is fetched
// again and the identity rows of entities missing from the new result are
// invalidated.
func (c *Coordinator) Get(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
	if key.IsZero() {
		return nil, cache.ErrInvalidKey
	}

	existing, present := c.store.GetIfPresent(key)
	if present && !key.IsRefreshRequested() {
		c.metrics.hit(key)
		return existing, nil
	}

	if present {
		c.store.Invalidate(key)
	}

	fresh, err := c.store.GetOrLoad(ctx, key, c.load)
	if err != nil {
		return nil, err
	}

	if present && !key.IsIdentity() {
		c.reconcile(key, existing, fresh)
	}
	return fresh, nil
}

// load is the single-flight loader. The miss is counted before the fetch,
// so failed fetches count as misses.
func (c *Coordinator) load(ctx context.Context, key cache.QueryKey) ([]cache.Entity, error) {
	misses := c.misses.Add(1)
	c.metrics.miss(key)

	start := time.Now()
	fresh, err := c.fetcher.FetchAll(ctx, key)
	elapsed := time.Since(start)
	c.metrics.fetched(key, elapsed, err)

	if err != nil {
		c.logger.Warn("remote fetch failed",
			zap.Stringer("key", key),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, &FetchError{Key: key, Err: err}
	}

	c.logger.Debug("cache miss",
		zap.Stringer("key", key),
		zap.Int64("misses", misses),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()),
		zap.Int("rows", len(fresh)),
	)

	if key.IsIdentity() {
		c.rememberShape(key)
	} else {
		c.populateIdentities(key, fresh)
	}
	return fresh, nil
}

// populateIdentities publishes a single-row identity entry for every
// entity of a list result.
func (c *Coordinator) populateIdentities(key cache.QueryKey, entities []cache.Entity) {
	published := false
	for _, e := range entities {
		if e == nil {
			continue
		}
		idKey, ok := c.identityKey(key, e.EntityID())
		if !ok {
			continue
		}
		c.store.Put(idKey, []cache.Entity{e})
		published = true
	}
	if published {
		c.rememberShape(key)
	}
}

// reconcile invalidates the identity rows of entities that were part of
// the previous result but not of the refreshed one.
func (c *Coordinator) reconcile(key cache.QueryKey, existing, fresh []cache.Entity) {
	for _, e := range existing {
		if e == nil || cache.ContainsEntity(fresh, e) {
			continue
		}
		// The id may still be present with different content, in which
		// case its identity row was just republished.
		if containsID(fresh, e.EntityID()) {
			continue
		}
		idKey, ok := c.identityKey(key, e.EntityID())
		if !ok {
			continue
		}
		c.store.Invalidate(idKey)
		c.metrics.staleInvalidated(key)
		c.logger.Debug("stale identity row invalidated",
			zap.Stringer("query", key),
			zap.Int("id", e.EntityID()),
		)
	}
}

func (c *Coordinator) identityKey(template cache.QueryKey, id int) (cache.QueryKey, bool) {
	idKey, err := template.Derive(c.identity(id))
	if err != nil {
		c.logger.Error("cannot derive identity key",
			zap.Stringer("key", template),
			zap.Int("id", id),
			zap.Error(err),
		)
		return cache.QueryKey{}, false
	}
	return idKey, true
}

func (c *Coordinator) rememberShape(key cache.QueryKey) {
	c.shapes.LoadOrStore(shapeID(key), key)
}

func shapeID(key cache.QueryKey) string {
	t := key.RowType()
	return t.PkgPath() + "." + t.Name() + "|" + key.Collection() + "|" + key.Fields().String()
}

func containsID(list []cache.Entity, id int) bool {
	for _, e := range list {
		if e != nil && e.EntityID() == id {
			return true
		}
	}
	return false
}

// FlushAll removes every entry, forgets every remembered shape and resets
// the miss counter.
func (c *Coordinator) FlushAll() {
	c.store.InvalidateAll()
	c.shapes.Clear()
	c.misses.Store(0)
}

// FlushEntity invalidates the identity rows of e for every collection and
// field selection they were published under.
//
// Query entries whose result includes e are not touched: they keep serving
// e until they expire, are evicted or are refreshed.
func (c *Coordinator) FlushEntity(e cache.Entity) {
	if e == nil {
		return
	}
	rowType := cache.RowTypeOf(e)
	c.shapes.Range(func(_ string, template cache.QueryKey) bool {
		if template.RowType() != rowType {
			return true
		}
		if idKey, ok := c.identityKey(template, e.EntityID()); ok {
			c.store.Invalidate(idKey)
		}
		return true
	})
}

// FlushEntities calls FlushEntity for each entity.
func (c *Coordinator) FlushEntities(entities []cache.Entity) {
	for _, e := range entities {
		c.FlushEntity(e)
	}
}

// FlushQuery invalidates the entry for key. Identity rows published from
// it are kept.
func (c *Coordinator) FlushQuery(key cache.QueryKey) {
	c.store.Invalidate(key)
}

// MissCount returns the number of loads since creation or the last reset.
func (c *Coordinator) MissCount() int64 {
	return c.misses.Load()
}

// ResetMissCount sets the miss counter back to zero.
func (c *Coordinator) ResetMissCount() {
	c.misses.Store(0)
}

// Len returns the number of entries held by the store.
func (c *Coordinator) Len() int {
	return c.store.Len()
}

// Close releases the store.
func (c *Coordinator) Close() error {
	return c.store.Close()
}
