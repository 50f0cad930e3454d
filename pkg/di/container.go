package di

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goliatone/go-accelo-cache/acceloapi"
	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/goliatone/go-accelo-cache/dao"
	"github.com/goliatone/go-accelo-cache/querycache"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Container wires the cache stack: metrics, store, coordinator, the API
// client and the data access objects. It owns the store and must be
// closed.
type Container struct {
	config      Config
	logger      *zap.Logger
	registry    *prometheus.Registry
	metrics     *querycache.Metrics
	store       cache.Store
	client      *acceloapi.Client
	coordinator *querycache.Coordinator
	companies   *dao.CompanyDao
	contracts   *dao.ContractDao
}

// Option customises a Container.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	httpClient *http.Client
	registry   *prometheus.Registry
	fetcher    querycache.Fetcher
}

// WithLogger replaces the logger built from Config.Log.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient sets the HTTP client used by the API client, typically
// one carrying OAuth credentials.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithRegistry registers the cache metrics on reg instead of a private
// registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithFetcher replaces the API client as the coordinator's fetcher.
func WithFetcher(f querycache.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// NewContainer validates cfg and builds every component.
func NewContainer(cfg Config, opts ...Option) (*Container, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		var err error
		if logger, err = NewLogger(cfg.Log); err != nil {
			return nil, fmt.Errorf("building logger: %w", err)
		}
	}

	c := &Container{config: cfg, logger: logger}

	observers := []cache.EvictionObserver{querycache.LoggingObserver(logger)}
	if cfg.Metrics.Enabled {
		c.registry = o.registry
		if c.registry == nil {
			c.registry = prometheus.NewRegistry()
		}
		c.metrics = querycache.NewMetrics(cfg.Metrics.Namespace, c.registry)
		observers = append(observers, c.metrics)
	}

	store, err := querycache.NewStore(cfg.Cache, logger, observers...)
	if err != nil {
		return nil, err
	}
	c.store = store

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Accelo.Timeout}
	}
	c.client, err = acceloapi.New(cfg.Accelo.BaseURL,
		acceloapi.WithHTTPClient(httpClient),
		acceloapi.WithPageSize(cfg.Accelo.PageSize),
		acceloapi.WithMaxPages(cfg.Accelo.MaxPages),
		acceloapi.WithLogger(logger),
	)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	var fetcher querycache.Fetcher = c.client
	if o.fetcher != nil {
		fetcher = o.fetcher
	}

	coordOpts := []querycache.Option{querycache.WithLogger(logger)}
	if c.metrics != nil {
		coordOpts = append(coordOpts, querycache.WithMetrics(c.metrics))
	}
	c.coordinator, err = querycache.New(store, fetcher, coordOpts...)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	if c.companies, err = dao.NewCompanyDao(c.coordinator); err != nil {
		return nil, errors.Join(err, store.Close())
	}
	if c.contracts, err = dao.NewContractDao(c.coordinator); err != nil {
		return nil, errors.Join(err, store.Close())
	}

	logger.Debug("cache container ready",
		zap.String("backend", string(cfg.Cache.Backend)),
		zap.Int("max_entries", cfg.Cache.MaxEntries),
		zap.String("base_url", cfg.Accelo.BaseURL),
	)
	return c, nil
}

// Config returns a copy of the configuration used by the container.
func (c *Container) Config() Config { return c.config }

// Logger returns the container logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Registry returns the metrics registry, or nil when metrics are disabled.
func (c *Container) Registry() *prometheus.Registry { return c.registry }

// Store returns the underlying cache store.
func (c *Container) Store() cache.Store { return c.store }

// Client returns the API client.
func (c *Container) Client() *acceloapi.Client { return c.client }

// Coordinator returns the query cache.
func (c *Container) Coordinator() *querycache.Coordinator { return c.coordinator }

// Companies returns the company DAO.
func (c *Container) Companies() *dao.CompanyDao { return c.companies }

// Contracts returns the contract DAO.
func (c *Container) Contracts() *dao.ContractDao { return c.contracts }

// Close stops the store's background work and flushes the logger.
func (c *Container) Close() error {
	err := c.coordinator.Close()
	_ = c.logger.Sync()
	return err
}
