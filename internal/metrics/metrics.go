// Package metrics exposes the server's Prometheus collectors, grounded
// on stats/target_stats.go's "one package-level registry of named
// counters/gauges, handed to whichever component produces the value"
// shape, using the real client library instead of that package's
// roll-your-own stats-value-holder.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DispatcherQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "substrata",
		Subsystem: "broadcast",
		Name:      "dispatcher_queue_depth",
		Help:      "Total queued-but-undelivered broadcast events across all subscribers.",
	})

	StoreFlushSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "substrata",
		Subsystem: "store",
		Name:      "flush_seconds",
		Help:      "Latency of AllWorldsState.FlushDirty passes.",
		Buckets:   prometheus.DefBuckets,
	})

	StoreCompactSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "substrata",
		Subsystem: "store",
		Name:      "compact_seconds",
		Help:      "Latency of AllWorldsState.CompactStore passes.",
		Buckets:   prometheus.DefBuckets,
	})

	HTTPRangeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "substrata",
		Subsystem: "resourcehttp",
		Name:      "range_requests_total",
		Help:      "Resource HTTP requests, partitioned by whether a Range header was present.",
	}, []string{"ranged"})
)

func init() {
	prometheus.MustRegister(DispatcherQueueDepth, StoreFlushSeconds, StoreCompactSeconds, HTTPRangeRequestsTotal)
}

// Handler returns the net/http handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
