// Package metrics provides Prometheus instrumentation for the indexing
// worker and the search pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all doc-indexer Prometheus metrics.
type Metrics struct {
	// Job queue metrics
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobsReaped    prometheus.Counter
	JobDuration   *prometheus.HistogramVec
	PollBatchSize prometheus.Histogram

	// Search metrics
	SearchRequests *prometheus.CounterVec
	SearchDuration prometheus.Histogram

	// Provider metrics
	EmbedCalls *prometheus.CounterVec
	ChatCalls  *prometheus.CounterVec
}

// New registers and returns the metric set on the default registry.
func New() *Metrics {
	return &Metrics{
		JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doc_indexer_jobs_processed_total",
			Help: "Jobs finished per type and outcome (succeeded, retried, dead_letter)",
		}, []string{"job_type", "outcome"}),

		JobsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doc_indexer_jobs_failed_total",
			Help: "Job handler failures per type and error class",
		}, []string{"job_type", "error_class"}),

		JobsReaped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "doc_indexer_jobs_reaped_total",
			Help: "Stale running jobs re-queued by the reaper",
		}),

		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doc_indexer_job_duration_seconds",
			Help:    "Time to execute one job handler",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job_type"}),

		PollBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "doc_indexer_poll_batch_size",
			Help:    "Number of due jobs returned per poll",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),

		SearchRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doc_indexer_search_requests_total",
			Help: "Search requests per mode (semantic, keyword, ask)",
		}, []string{"mode"}),

		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "doc_indexer_search_duration_seconds",
			Help:    "End-to-end search latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		EmbedCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doc_indexer_embed_calls_total",
			Help: "Embedding provider calls per outcome",
		}, []string{"outcome"}),

		ChatCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "doc_indexer_chat_calls_total",
			Help: "Chat provider calls per outcome",
		}, []string{"outcome"}),
	}
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordJob records one finished job handler run.
func (m *Metrics) RecordJob(jobType, outcome string, duration time.Duration) {
	m.JobsProcessed.WithLabelValues(jobType, outcome).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// RecordJobFailure records a handler failure by error class.
func (m *Metrics) RecordJobFailure(jobType, errorClass string) {
	m.JobsFailed.WithLabelValues(jobType, errorClass).Inc()
}

// RecordEmbedCall records one embedding provider round-trip.
func (m *Metrics) RecordEmbedCall(outcome string) {
	m.EmbedCalls.WithLabelValues(outcome).Inc()
}

// RecordChatCall records one chat completion round-trip.
func (m *Metrics) RecordChatCall(outcome string) {
	m.ChatCalls.WithLabelValues(outcome).Inc()
}

// RecordSearch records one search request.
func (m *Metrics) RecordSearch(mode string, duration time.Duration) {
	m.SearchRequests.WithLabelValues(mode).Inc()
	m.SearchDuration.Observe(duration.Seconds())
}
