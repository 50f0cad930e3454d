package querycache

import (
	"time"

	"github.com/goliatone/go-accelo-cache/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Interface assertion to ensure Metrics can observe store removals
var _ cache.EvictionObserver = (*Metrics)(nil)

// Metrics exports cache activity as Prometheus collectors. All series are
// labelled by collection; evictions are labelled by cause instead.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	hits               *prometheus.CounterVec
	misses             *prometheus.CounterVec
	fetchErrors        *prometheus.CounterVec
	fetchDuration      *prometheus.HistogramVec
	staleInvalidations *prometheus.CounterVec
	evictions          *prometheus.CounterVec
}

// NewMetrics registers the cache collectors on reg under namespace.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		hits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "hits_total",
				Help:      "Total number of queries served from the cache",
			},
			[]string{"collection"},
		),
		misses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "misses_total",
				Help:      "Total number of queries loaded from the remote API",
			},
			[]string{"collection"},
		),
		fetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "fetch_errors_total",
				Help:      "Total number of failed remote fetches",
			},
			[]string{"collection"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "fetch_duration_seconds",
				Help:      "Remote fetch duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"collection"},
		),
		staleInvalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "stale_invalidations_total",
				Help:      "Total number of identity rows dropped after a refresh",
			},
			[]string{"collection"},
		),
		evictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query_cache",
				Name:      "removals_total",
				Help:      "Total number of entries removed from the store",
			},
			[]string{"cause"},
		),
	}
}

// OnEvict implements cache.EvictionObserver.
func (m *Metrics) OnEvict(_ cache.QueryKey, cause cache.RemovalCause) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(cause.String()).Inc()
}

func (m *Metrics) hit(key cache.QueryKey) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(key.Collection()).Inc()
}

func (m *Metrics) miss(key cache.QueryKey) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(key.Collection()).Inc()
}

func (m *Metrics) fetched(key cache.QueryKey, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(key.Collection()).Observe(elapsed.Seconds())
	if err != nil {
		m.fetchErrors.WithLabelValues(key.Collection()).Inc()
	}
}

func (m *Metrics) staleInvalidated(key cache.QueryKey) {
	if m == nil {
		return
	}
	m.staleInvalidations.WithLabelValues(key.Collection()).Inc()
}
