// Package metrics exposes Prometheus counters and gauges describing
// pipeline shape only: no PII, no station values.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchesAttempted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecastpipe_fetches_attempted_total",
		Help: "Data fetch attempts, labeled by model, provider, and result.",
	}, []string{"model", "provider", "result"})

	DownloadBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecastpipe_downloads_bytes_total",
		Help: "Bytes downloaded from upstream providers, labeled by model and provider.",
	}, []string{"model", "provider"})

	MapsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forecastpipe_maps_generated_total",
		Help: "Map render attempts, labeled by model, variable, and result.",
	}, []string{"model", "variable", "result"})

	RunDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forecastpipe_run_duration_seconds",
		Help:    "Wall-clock duration of a complete per-model run, PENDING to COMPLETE/ABANDONED.",
		Buckets: prometheus.ExponentialBuckets(30, 2, 12),
	}, []string{"model"})

	WorkerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forecastpipe_worker_queue_depth",
		Help: "Number of render tasks currently executing in the worker pool.",
	})

	MemoryAvailableBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forecastpipe_memory_available_bytes",
		Help: "System memory available at last worker-pool sizing check.",
	})
)

// Handler returns the HTTP handler for the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
