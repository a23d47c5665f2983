package fetchkit

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides Prometheus metrics for the fetch lifecycle and its
// reliability layers. It is safe for concurrent use; a nil *Collector is a
// no-op so callers never need to guard recording sites.
type Collector struct {
	fetchesTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	fetchesInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	staleServes *prometheus.CounterVec

	dedupHits *prometheus.CounterVec

	optimisticApplied   *prometheus.CounterVec
	optimisticRollbacks *prometheus.CounterVec
	optimisticExpired   prometheus.Counter

	errorsTotal *prometheus.CounterVec
}

// NewCollector creates a collector on the default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector using the supplied registerer.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	return &Collector{
		fetchesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_fetches_total",
				Help: "Total number of fetches by outcome",
			},
			[]string{"key", "outcome"},
		),
		fetchDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchkit_fetch_duration_seconds",
				Help:    "Duration of fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"key", "outcome"},
		),
		fetchesInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_fetches_in_flight",
				Help: "Number of fetches currently in flight",
			},
			[]string{"key"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"key", "attempt"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key"},
		),
		staleServes: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_stale_serves_total",
				Help: "Total number of stale cache entries served ahead of a background refresh",
			},
			[]string{"key"},
		),
		dedupHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_dedup_hits_total",
				Help: "Total number of requests coalesced onto an in-flight call",
			},
			[]string{"key"},
		),
		optimisticApplied: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_optimistic_applied_total",
				Help: "Total number of optimistic updates applied",
			},
			[]string{"key"},
		),
		optimisticRollbacks: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_optimistic_rollbacks_total",
				Help: "Total number of optimistic updates rolled back",
			},
			[]string{"key"},
		),
		optimisticExpired: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "fetchkit_optimistic_expired_total",
				Help: "Total number of optimistic updates that expired unconfirmed",
			},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_errors_total",
				Help: "Total number of surfaced errors by type",
			},
			[]string{"type", "key"},
		),
	}
}

// RecordFetch records fetch count and duration for an outcome.
func (c *Collector) RecordFetch(key, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.fetchesTotal.WithLabelValues(key, outcome).Inc()
	c.fetchDuration.WithLabelValues(key, outcome).Observe(duration.Seconds())
}

// RecordFetchStart increments the in-flight gauge.
func (c *Collector) RecordFetchStart(key string) {
	if c == nil {
		return
	}
	c.fetchesInFlight.WithLabelValues(key).Inc()
}

// RecordFetchEnd decrements the in-flight gauge.
func (c *Collector) RecordFetchEnd(key string) {
	if c == nil {
		return
	}
	c.fetchesInFlight.WithLabelValues(key).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (c *Collector) RecordRetry(key string, attempt int) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(key, strconv.Itoa(attempt)).Inc()
}

// RecordCacheHit increments the cache hit counter.
func (c *Collector) RecordCacheHit(key string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(key).Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (c *Collector) RecordCacheMiss(key string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(key).Inc()
}

// RecordStaleServe increments the stale-while-revalidate serve counter.
func (c *Collector) RecordStaleServe(key string) {
	if c == nil {
		return
	}
	c.staleServes.WithLabelValues(key).Inc()
}

// RecordDedupHit increments the deduplication hit counter.
func (c *Collector) RecordDedupHit(key string) {
	if c == nil {
		return
	}
	c.dedupHits.WithLabelValues(key).Inc()
}

// RecordOptimisticApplied increments the optimistic update counter.
func (c *Collector) RecordOptimisticApplied(key string) {
	if c == nil {
		return
	}
	c.optimisticApplied.WithLabelValues(key).Inc()
}

// RecordOptimisticRollback increments the optimistic rollback counter.
func (c *Collector) RecordOptimisticRollback(key string) {
	if c == nil {
		return
	}
	c.optimisticRollbacks.WithLabelValues(key).Inc()
}

// RecordOptimisticExpired increments the unconfirmed-expiry counter.
func (c *Collector) RecordOptimisticExpired() {
	if c == nil {
		return
	}
	c.optimisticExpired.Inc()
}

// RecordError increments the error counter by type.
func (c *Collector) RecordError(errorType, key string) {
	if c == nil {
		return
	}
	c.errorsTotal.WithLabelValues(errorType, key).Inc()
}
