// Package observability holds the Prometheus collectors, HTTP middleware and
// tracing helpers shared by the server and the workers.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spice_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spice_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	chatStageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spice_chat_stage_duration_seconds",
			Help:    "Latency of each chat pipeline stage.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	chatFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spice_chat_failures_total",
			Help: "Chat requests that failed, by stage.",
		},
		[]string{"stage"},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spice_classification_jobs_total",
			Help: "Classification jobs by terminal status.",
		},
		[]string{"status"},
	)

	expensesClassifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spice_expenses_classified_total",
			Help: "Expense rows that received a category.",
		},
	)

	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spice_uploads_total",
			Help: "Uploaded files by final status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		chatStageSeconds,
		chatFailuresTotal,
		jobsTotal,
		expensesClassifiedTotal,
		uploadsTotal,
	)
}

// ObserveChatStage records how long one chat stage took.
func ObserveChatStage(stage string, d time.Duration) {
	chatStageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// IncrementChatFailure counts a chat request that stopped at stage.
func IncrementChatFailure(stage string) {
	chatFailuresTotal.WithLabelValues(stage).Inc()
}

// ObserveJob counts a job reaching a terminal status.
func ObserveJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// AddClassified counts expense rows written back with a category.
func AddClassified(n int64) {
	if n > 0 {
		expensesClassifiedTotal.Add(float64(n))
	}
}

// ObserveUpload counts an upload reaching a final status.
func ObserveUpload(status string) {
	uploadsTotal.WithLabelValues(status).Inc()
}
