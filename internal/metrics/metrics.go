// Package metrics defines the Prometheus collectors exported by the daemon.
// Collectors are package-level promauto vars so every component records into
// the same default registry; the daemon's HTTP server exposes them on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocr_jobs_submitted_total",
		Help: "Jobs admitted by the intake gateway.",
	}, []string{"mode", "priority"})

	JobsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocr_jobs_rejected_total",
		Help: "Submissions rejected before admission.",
	}, []string{"reason"})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocr_jobs_finished_total",
		Help: "Jobs that reached a terminal status.",
	}, []string{"status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ocr_job_duration_seconds",
		Help:    "Wall-clock time from submission to terminal status.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"mode"})

	RecognizeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ocr_recognize_duration_seconds",
		Help:    "Engine execution time for a single attempt.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"engine"})

	RetriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocr_retries_scheduled_total",
		Help: "Execution attempts rescheduled after a retryable failure.",
	})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ocr_queue_depth",
		Help: "Entries waiting per priority level.",
	}, []string{"priority"})

	WorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocr_workers_busy",
		Help: "Workers currently executing a job.",
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocr_cache_hits_total",
		Help: "Submissions served from the result cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocr_cache_misses_total",
		Help: "Submissions that required an engine execution.",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocr_cache_evictions_total",
		Help: "Results evicted to satisfy cache budgets.",
	})

	FlightAttached = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocr_flight_attached_total",
		Help: "Submissions attached to an in-flight execution of identical content.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocr_events_dropped_total",
		Help: "Progress events discarded because a subscriber lagged.",
	})

	BatchesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocr_batches_completed_total",
		Help: "Batches whose every member reached a terminal status.",
	})

	ArchiveDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocr_archive_dropped_total",
		Help: "Terminal snapshots not archived because the writer buffer was full.",
	})
)

// Handler returns the HTTP handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
