package cache

import (
	"context"
	"errors"
)

var (
	// ErrNilLoader is returned by GetOrLoad when no LoadFunc is supplied.
	ErrNilLoader = errors.New("cache: nil load function")
	// ErrLoaderPanic wraps a panic raised inside a LoadFunc.
	ErrLoaderPanic = errors.New("cache: load function panicked")
)

// LoadFunc fetches the entities for key from the source of truth.
type LoadFunc func(ctx context.Context, key QueryKey) ([]Entity, error)

// Store is a bounded, expiring map from QueryKey to entity lists.
//
// Returned slices are shared read-only views; callers must not modify them.
type Store interface {
	// GetOrLoad returns the cached entry for key or calls load exactly once
	// for all concurrent callers missing the same key. Failures are handed to
	// every waiter and are never cached.
	GetOrLoad(ctx context.Context, key QueryKey, load LoadFunc) ([]Entity, error)
	// GetIfPresent never triggers a load.
	GetIfPresent(key QueryKey) ([]Entity, bool)
	// Put inserts or replaces the entry for key and resets its expiry clock.
	Put(key QueryKey, entities []Entity)
	// Invalidate removes the entry for key. Missing keys are a no-op.
	Invalidate(key QueryKey)
	// InvalidateAll removes every entry.
	InvalidateAll()
	// Len returns the number of entries currently held.
	Len() int
	// Close releases background resources.
	Close() error
}

// RemovalCause explains why an entry left the store.
type RemovalCause int

const (
	// RemovalExplicit is an Invalidate or InvalidateAll call.
	RemovalExplicit RemovalCause = iota
	// RemovalReplaced is a Put over an existing entry.
	RemovalReplaced
	// RemovalExpired is an entry idle for longer than the configured timeout.
	RemovalExpired
	// RemovalSize is a capacity eviction of the least recently used entry.
	RemovalSize
)

func (c RemovalCause) String() string {
	switch c {
	case RemovalExplicit:
		return "explicit"
	case RemovalReplaced:
		return "replaced"
	case RemovalExpired:
		return "expired"
	case RemovalSize:
		return "size"
	default:
		return "unknown"
	}
}

// Evicted reports whether the removal was decided by the store rather than
// requested by a caller.
func (c RemovalCause) Evicted() bool {
	return c == RemovalExpired || c == RemovalSize
}

// EvictionObserver is notified synchronously, after the store released its
// internal locks, for every removal. Panics are recovered by the store.
type EvictionObserver interface {
	OnEvict(key QueryKey, cause RemovalCause)
}

// ObserverFunc adapts a function to EvictionObserver.
type ObserverFunc func(key QueryKey, cause RemovalCause)

// OnEvict implements EvictionObserver.
func (f ObserverFunc) OnEvict(key QueryKey, cause RemovalCause) { f(key, cause) }

// Observers fans a notification out to every non-nil observer in order.
type Observers []EvictionObserver

// OnEvict implements EvictionObserver.
func (o Observers) OnEvict(key QueryKey, cause RemovalCause) {
	for _, observer := range o {
		if observer != nil {
			observer.OnEvict(key, cause)
		}
	}
}
