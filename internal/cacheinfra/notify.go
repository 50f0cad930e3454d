package cacheinfra

import (
	"github.com/goliatone/go-accelo-cache/cache"
	"go.uber.org/zap"
)

// removal is a pending observer notification.
type removal struct {
	key   cache.QueryKey
	cause cache.RemovalCause
}

// notifier delivers removals to the configured observer outside of any
// store lock and shields the store from observer panics.
type notifier struct {
	observer cache.EvictionObserver
	logger   *zap.Logger
}

func (n notifier) dispatch(removals []removal) {
	if n.observer == nil {
		return
	}
	for _, r := range removals {
		n.notify(r)
	}
}

func (n notifier) notify(r removal) {
	defer func() {
		if rec := recover(); rec != nil {
			n.logger.Error("eviction observer panicked",
				zap.Stringer("key", r.key),
				zap.Stringer("cause", r.cause),
				zap.Any("panic", rec),
			)
		}
	}()
	n.observer.OnEvict(r.key, r.cause)
}
