package cacheinfra

import (
	"errors"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/viccon/sturdyc"
	"go.uber.org/zap"
)

// Config holds the configuration shared by the store backends.
type Config struct {
	// Capacity is the maximum number of entries the store may hold.
	// Must be greater than 0.
	Capacity int

	// NumShards splits the store for concurrent access. Each shard has its
	// own lock, so unrelated keys rarely contend. Clamped to Capacity.
	// Must be greater than 0. Default: 64
	NumShards int

	// IdleTimeout evicts entries that have not been read or written for
	// longer than this duration. The sturdyc backend treats it as a TTL
	// from write. Must be greater than 0. Default: 10 minutes
	IdleTimeout time.Duration

	// SweepInterval sets how often expired entries are purged in the
	// background. Zero disables the sweeper; expiry is then only enforced
	// on access.
	SweepInterval time.Duration

	// EvictionPercentage is the share of a sturdyc shard dropped when it
	// is full. Ignored by the LRU backend. Must be between 1-100.
	EvictionPercentage int

	// EarlyRefresh enables sturdyc background refreshes. If nil, early
	// refresh is disabled. Ignored by the LRU backend.
	EarlyRefresh *EarlyRefreshConfig

	// Observer receives every removal notification. Optional.
	Observer cache.EvictionObserver

	// Logger records observer failures. Defaults to a no-op logger.
	Logger *zap.Logger

	// Now overrides the clock used for idle expiry. Defaults to time.Now.
	Now func() time.Time
}

// EarlyRefreshConfig mirrors the sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a Config matching the documented defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		IdleTimeout:        10 * time.Minute,
		SweepInterval:      time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0")),
		validation.Field(&c.NumShards,
			validation.Required.Error("must be greater than 0"),
			validation.Min(1).Error("must be greater than 0")),
		validation.Field(&c.IdleTimeout,
			validation.Required.Error("must be greater than 0"),
			validation.Min(time.Duration(1)).Error("must be greater than 0")),
		validation.Field(&c.SweepInterval,
			validation.Min(time.Duration(0)).Error("must be non-negative")),
		validation.Field(&c.EvictionPercentage,
			validation.Required.Error("must be between 1 and 100"),
			validation.Min(1).Error("must be between 1 and 100"),
			validation.Max(100).Error("must be between 1 and 100")),
	)
	if err != nil {
		return toConfigError(err)
	}

	if c.EarlyRefresh != nil {
		if c.EarlyRefresh.MinAsyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.MinAsyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.MaxAsyncRefreshTime < c.EarlyRefresh.MinAsyncRefreshTime {
			return &ConfigError{Field: "EarlyRefresh.MaxAsyncRefreshTime", Message: "must not be less than MinAsyncRefreshTime"}
		}
		if c.EarlyRefresh.SyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.SyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.RetryBaseDelay < 0 {
			return &ConfigError{Field: "EarlyRefresh.RetryBaseDelay", Message: "must be non-negative"}
		}
	}

	return nil
}

// toConfigError reports the first failing field in name order.
func toConfigError(err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if errs[field] != nil {
			return &ConfigError{Field: field, Message: errs[field].Error()}
		}
	}
	return nil
}

// ToSturdycOptions converts the Config to sturdyc options. Capacity,
// NumShards, IdleTimeout and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.SweepInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.SweepInterval))
	}

	return options
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) clock() func() time.Time {
	if c.Now == nil {
		return time.Now
	}
	return c.Now
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
