package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks pipeline throughput and routing behavior.
type Metrics struct {
	RequestDuration  prometheus.Histogram
	TierInvocations  *prometheus.CounterVec
	RoutingDecisions *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide pipeline metrics. promauto panics on
// duplicate registration, so the instance is created once.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "eventparse_request_duration_seconds",
				Help:    "End-to-end parse latency in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			}),
			TierInvocations: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "eventparse_tier_invocations_total",
				Help: "Extraction tier invocations by tier.",
			}, []string{"tier"}),
			RoutingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "eventparse_routing_decisions_total",
				Help: "Per-field routing decisions by outcome.",
			}, []string{"decision"}),
		}
	})
	return metricsInstance
}
