package querycache

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/goliatone/go-accelo-cache/internal/cacheinfra"
	"go.uber.org/zap"
)

// ConfigError reports the first invalid configuration field.
type ConfigError = cacheinfra.ConfigError

// Backend selects the store implementation.
type Backend string

const (
	// BackendLRU is the sharded LRU store with idle expiry. It reports
	// every removal cause.
	BackendLRU Backend = "lru"
	// BackendSturdyc stores entries in a sturdyc client. It does not
	// provide idle expiry: IdleTimeout is applied as a TTL from write, and
	// only explicit and replaced removals reach observers. Capacity and
	// TTL evictions happen silently inside sturdyc. Use BackendLRU where
	// access-based expiry and full eviction reporting are required.
	BackendSturdyc Backend = "sturdyc"
)

// Config is the public store configuration.
type Config struct {
	Backend            Backend             `yaml:"backend"`
	MaxEntries         int                 `yaml:"max_entries"`
	NumShards          int                 `yaml:"num_shards"`
	IdleTimeout        time.Duration       `yaml:"idle_timeout"`
	SweepInterval      time.Duration       `yaml:"sweep_interval"`
	EvictionPercentage int                 `yaml:"eviction_percentage"`
	EarlyRefresh       *EarlyRefreshConfig `yaml:"early_refresh"`
}

// EarlyRefreshConfig enables background refreshes on the sturdyc backend.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `yaml:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `yaml:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `yaml:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
}

// DefaultConfig returns an LRU configuration holding up to 10,000 entries
// that expire after 10 minutes without access.
func DefaultConfig() Config {
	d := cacheinfra.DefaultConfig()
	return Config{
		Backend:            BackendLRU,
		MaxEntries:         d.Capacity,
		NumShards:          d.NumShards,
		IdleTimeout:        d.IdleTimeout,
		SweepInterval:      d.SweepInterval,
		EvictionPercentage: d.EvictionPercentage,
	}
}

// Validate checks the backend name and the store parameters.
func (c Config) Validate() error {
	err := validation.Validate(c.Backend,
		validation.Required.Error("must be set"),
		validation.In(BackendLRU, BackendSturdyc).Error("must be lru or sturdyc"),
	)
	if err != nil {
		return &ConfigError{Field: "Backend", Message: err.Error()}
	}
	if err := c.internal(nil, nil).Validate(); err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Field == "Capacity" {
			return &ConfigError{Field: "MaxEntries", Message: cfgErr.Message}
		}
		return err
	}
	return nil
}

func (c Config) internal(logger *zap.Logger, observer cache.EvictionObserver) cacheinfra.Config {
	cfg := cacheinfra.Config{
		Capacity:           c.MaxEntries,
		NumShards:          c.NumShards,
		IdleTimeout:        c.IdleTimeout,
		SweepInterval:      c.SweepInterval,
		EvictionPercentage: c.EvictionPercentage,
		Observer:           observer,
		Logger:             logger,
	}
	if c.EarlyRefresh != nil {
		cfg.EarlyRefresh = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}
	return cfg
}

// NewStore builds the configured backend. Every removal is reported to
// observers in order; logger records observer panics.
func NewStore(cfg Config, logger *zap.Logger, observers ...cache.EvictionObserver) (cache.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var observer cache.EvictionObserver
	if len(observers) > 0 {
		observer = cache.Observers(observers)
	}
	internal := cfg.internal(logger, observer)

	switch cfg.Backend {
	case BackendSturdyc:
		if logger != nil {
			logger.Warn("sturdyc backend expires entries by write time and does not report size or expiry evictions",
				zap.Int("max_entries", cfg.MaxEntries),
				zap.Duration("ttl", cfg.IdleTimeout),
			)
		}
		store, err := cacheinfra.NewSturdycStore(internal)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendLRU:
		store, err := cacheinfra.NewLRUStore(internal)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
