package cacheinfra

import (
	"context"
	"fmt"
	"slices"

	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/viccon/sturdyc"
)

// Interface assertion to ensure SturdycStore implements cache.Store
var _ cache.Store = (*SturdycStore)(nil)

// sturdycEntry keeps the full key next to the rows so removals can be
// reported with it.
type sturdycEntry struct {
	key      cache.QueryKey
	entities []cache.Entity
}

// SturdycStore adapts a sturdyc client to cache.Store.
//
// sturdyc deduplicates concurrent fetches for the same key, which provides
// single-flight loading. Failed loads are not cached.
//
// This store does not implement idle expiry. IdleTimeout is applied as a TTL
// from write, so reads never extend an entry's life. Capacity and TTL
// evictions happen inside sturdyc without notification, so observers only
// see explicit and replaced removals. Use LRUStore when either matters.
type SturdycStore struct {
	client   *sturdyc.Client[sturdycEntry]
	notifier notifier
}

// NewSturdycStore creates a new sturdyc backed store.
//
// The constructor translates Config parameters to sturdyc initialization:
// - Capacity, NumShards, IdleTimeout, EvictionPercentage are passed to sturdyc.New()
// - Other options are applied via ToSturdycOptions()
func NewSturdycStore(cfg Config) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[sturdycEntry](
		cfg.Capacity,
		min(cfg.NumShards, cfg.Capacity),
		cfg.IdleTimeout,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycStore{
		client:   client,
		notifier: notifier{observer: cfg.Observer, logger: cfg.logger()},
	}, nil
}

// GetOrLoad implements cache.Store.GetOrLoad.
func (s *SturdycStore) GetOrLoad(ctx context.Context, key cache.QueryKey, load cache.LoadFunc) ([]cache.Entity, error) {
	if key.IsZero() {
		return nil, cache.ErrInvalidKey
	}
	if load == nil {
		return nil, cache.ErrNilLoader
	}

	value, err := s.client.GetOrFetch(ctx, key.String(), func(ctx context.Context) (sturdycEntry, error) {
		rows, err := safeLoad(ctx, key, load)
		if err != nil {
			return sturdycEntry{}, err
		}
		return sturdycEntry{key: key, entities: slices.Clone(rows)}, nil
	})
	if err != nil {
		return nil, err
	}
	return value.entities, nil
}

// safeLoad turns a panic in load into cache.ErrLoaderPanic before it can
// reach the sturdyc fetch machinery.
func safeLoad(ctx context.Context, key cache.QueryKey, load cache.LoadFunc) (entities []cache.Entity, err error) {
	defer func() {
		if r := recover(); r != nil {
			entities, err = nil, fmt.Errorf("%w: %v", cache.ErrLoaderPanic, r)
		}
	}()
	return load(ctx, key)
}

// GetIfPresent implements cache.Store.GetIfPresent.
func (s *SturdycStore) GetIfPresent(key cache.QueryKey) ([]cache.Entity, bool) {
	if key.IsZero() {
		return nil, false
	}
	value, ok := s.client.Get(key.String())
	if !ok {
		return nil, false
	}
	return value.entities, true
}

// Put implements cache.Store.Put.
func (s *SturdycStore) Put(key cache.QueryKey, entities []cache.Entity) {
	if key.IsZero() {
		return
	}
	id := key.String()
	old, replaced := s.client.Get(id)
	s.client.Set(id, sturdycEntry{key: key, entities: slices.Clone(entities)})
	if replaced {
		s.notifier.dispatch([]removal{{key: old.key, cause: cache.RemovalReplaced}})
	}
}

// Invalidate implements cache.Store.Invalidate.
func (s *SturdycStore) Invalidate(key cache.QueryKey) {
	if key.IsZero() {
		return
	}
	id := key.String()
	old, ok := s.client.Get(id)
	s.client.Delete(id)
	if ok {
		s.notifier.dispatch([]removal{{key: old.key, cause: cache.RemovalExplicit}})
	}
}

// InvalidateAll implements cache.Store.InvalidateAll.
func (s *SturdycStore) InvalidateAll() {
	var removals []removal
	for _, id := range s.client.ScanKeys() {
		if old, ok := s.client.Get(id); ok {
			removals = append(removals, removal{key: old.key, cause: cache.RemovalExplicit})
		}
		s.client.Delete(id)
	}
	s.notifier.dispatch(removals)
}

// Len implements cache.Store.Len.
func (s *SturdycStore) Len() int {
	return s.client.Size()
}

// Close implements cache.Store.Close. sturdyc has no shutdown hook.
func (s *SturdycStore) Close() error {
	return nil
}
