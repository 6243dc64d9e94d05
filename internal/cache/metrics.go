package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds prometheus metrics for the result cache.
type Metrics struct {
	Hits      prometheus.Counter
	Misses    prometheus.Counter
	Evictions prometheus.Counter
	Size      prometheus.Gauge
}

// NewMetrics creates and registers the cache metrics. sync.Once guards
// against duplicate collector registration.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Hits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "eventparse_cache_hits_total",
				Help: "Total number of result cache hits",
			}),
			Misses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "eventparse_cache_misses_total",
				Help: "Total number of result cache misses",
			}),
			Evictions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "eventparse_cache_evictions_total",
				Help: "Total number of entries evicted by TTL or LRU pressure",
			}),
			Size: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "eventparse_cache_entries",
				Help: "Current number of cached results",
			}),
		}
	})
	return globalMetrics
}
