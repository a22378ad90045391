// Package metrics provides performance tracking and observability for
// tileserv using Prometheus metrics.
//
// # Overview
//
// The package exposes pre-defined collectors for the serving core:
//   - index-cache effectiveness (hits, misses, evictions, expirations)
//   - pool occupancy (live handles per pool)
//   - slab-index resolution latency per backend kind
//   - remote fetch counters
//
// # Basic Usage
//
//	collector := metrics.NewCollector()
//	collector.RecordCacheHit()
//	collector.SetPoolHandles("storage", pool.Len())
//
//	timer := collector.ResolveTimer("s3")
//	idx, err := resolve(...)
//	timer.ObserveDuration()
//
// Metrics are registered once at package init on the default registry and
// served by the admin listener's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tileserv_index_cache_requests_total",
		Help: "Index cache lookups by result (hit or miss)",
	}, []string{"result"})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserv_index_cache_evictions_total",
		Help: "Entries evicted from the index cache by LRU pressure",
	})

	cacheExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tileserv_index_cache_expirations_total",
		Help: "Entries dropped from the index cache after outliving the validity window",
	})

	cacheResident = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tileserv_index_cache_resident_entries",
		Help: "Entries currently resident in the index cache",
	})

	poolHandles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tileserv_pool_handles",
		Help: "Live handles per resource pool",
	}, []string{"pool"})

	resolveLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tileserv_index_resolve_duration_seconds",
		Help:    "Slab-index resolution latency on cache miss, by backend kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	fetchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tileserv_fetch_requests_total",
		Help: "Remote fetch requests by outcome",
	}, []string{"outcome"})

	bookEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tileserv_book_entries",
		Help: "Active entries per descriptor book",
	}, []string{"book"})
)

// Collector is the recording interface handed to the serving facade. It is
// a thin, allocation-free wrapper over the package-level vectors.
type Collector struct{}

// NewCollector returns a collector over the package metrics.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordCacheHit counts one index-cache hit.
func (c *Collector) RecordCacheHit() {
	cacheRequests.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts one index-cache miss.
func (c *Collector) RecordCacheMiss() {
	cacheRequests.WithLabelValues("miss").Inc()
}

// RecordCacheEviction counts one LRU eviction.
func (c *Collector) RecordCacheEviction() {
	cacheEvictions.Inc()
}

// RecordCacheExpiration counts one validity-window expiration.
func (c *Collector) RecordCacheExpiration() {
	cacheExpirations.Inc()
}

// SetCacheResident records the resident entry count.
func (c *Collector) SetCacheResident(n int) {
	cacheResident.Set(float64(n))
}

// SetPoolHandles records the live handle count for a pool.
func (c *Collector) SetPoolHandles(pool string, n int) {
	poolHandles.WithLabelValues(pool).Set(float64(n))
}

// SetBookEntries records the active entry count for a descriptor book.
func (c *Collector) SetBookEntries(book string, n int) {
	bookEntries.WithLabelValues(book).Set(float64(n))
}

// RecordFetch counts one remote fetch by outcome ("success" or "failure").
func (c *Collector) RecordFetch(outcome string) {
	fetchRequests.WithLabelValues(outcome).Inc()
}

// ObserveResolve records one slab-index resolution duration.
func (c *Collector) ObserveResolve(backend string, d time.Duration) {
	resolveLatency.WithLabelValues(backend).Observe(d.Seconds())
}

// ResolveTimer returns a prometheus timer for the given backend kind.
func (c *Collector) ResolveTimer(backend string) *prometheus.Timer {
	return prometheus.NewTimer(resolveLatency.WithLabelValues(backend))
}
