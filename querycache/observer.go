package querycache

import (
	"github.com/goliatone/go-accelo-cache/cache"
	"go.uber.org/zap"
)

// LoggingObserver returns an observer that logs every removal. Evictions
// decided by the store are logged at info, explicit and replaced removals
// at debug.
func LoggingObserver(logger *zap.Logger) cache.EvictionObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return cache.ObserverFunc(func(key cache.QueryKey, cause cache.RemovalCause) {
		level := zap.DebugLevel
		if cause.Evicted() {
			level = zap.InfoLevel
		}
		if ce := logger.Check(level, "cache entry removed"); ce != nil {
			ce.Write(
				zap.Stringer("key", key),
				zap.Stringer("cause", cause),
			)
		}
	})
}
