package di

import (
	"errors"
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-accelo-cache/acceloapi"
	"github.com/goliatone/go-accelo-cache/querycache"
	"gopkg.in/yaml.v3"
)

// Config is the file configuration of a Container.
type Config struct {
	Accelo  AcceloConfig      `yaml:"accelo"`
	Cache   querycache.Config `yaml:"cache"`
	Log     LogConfig         `yaml:"log"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// AcceloConfig locates the remote API.
type AcceloConfig struct {
	// BaseURL of the deployment, e.g. https://example.api.accelo.com
	BaseURL  string        `yaml:"base_url"`
	PageSize int           `yaml:"page_size"`
	MaxPages int           `yaml:"max_pages"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig names the Prometheus namespace of the cache metrics.
// Metrics are disabled when Enabled is false.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the configuration used when a file leaves a
// value unset. BaseURL has no default.
func DefaultConfig() Config {
	return Config{
		Accelo: AcceloConfig{
			PageSize: acceloapi.DefaultPageSize,
			MaxPages: acceloapi.DefaultMaxPages,
			Timeout:  30 * time.Second,
		},
		Cache: querycache.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "accelo",
		},
	}
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c.Accelo,
		validation.Field(&c.Accelo.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Accelo.PageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Accelo.MaxPages, validation.Required, validation.Min(1)),
		validation.Field(&c.Accelo.Timeout, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return fmt.Errorf("accelo: %w", err)
	}

	err = validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Log.Format, validation.In("json", "console")),
	)
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if c.Metrics.Enabled {
		if err := validation.Validate(c.Metrics.Namespace, validation.Required); err != nil {
			return fmt.Errorf("metrics: namespace %w", err)
		}
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML file over DefaultConfig and validates the
// result. Durations are Go duration strings such as "10m".
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing YAML config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigOrDefault is LoadConfig that falls back to DefaultConfig when
// path does not exist. The result is not validated, so callers can still
// apply overrides such as a base URL flag.
func LoadConfigOrDefault(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing YAML config: %w", err)
	}
	return cfg, nil
}
