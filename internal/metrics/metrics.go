package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generator loop metrics
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modelmon_ticks_total",
			Help: "Total number of simulation ticks",
		},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelmon_tick_duration_seconds",
			Help:    "Time taken to advance simulated state",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	StateClampsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmon_state_clamps_total",
			Help: "Total number of simulated values clamped back into their domain",
		},
		[]string{"metric"},
	)

	SamplesPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modelmon_samples_published_total",
			Help: "Total number of metric samples published",
		},
	)

	// Sample feed metrics
	FeedPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmon_feed_publish_total",
			Help: "Total number of sample batches published to the feed",
		},
		[]string{"status"}, // status: success, failed
	)

	FeedPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelmon_feed_publish_duration_seconds",
			Help:    "Time taken to publish a sample batch to the feed",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Aggregator poll metrics
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmon_polls_total",
			Help: "Total number of upstream polls",
		},
		[]string{"status"}, // status: success, partial, failed
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modelmon_poll_duration_seconds",
			Help:    "Time taken to poll the metric store and alert engine",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	UpstreamQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmon_upstream_query_errors_total",
			Help: "Total number of failed upstream queries",
		},
		[]string{"upstream"}, // upstream: metrics, alerts
	)

	HistoryRejectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modelmon_history_rejects_total",
			Help: "Total number of history points rejected as out of order",
		},
	)

	SnapshotCacheErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modelmon_snapshot_cache_errors_total",
			Help: "Total number of snapshot cache write failures",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmon_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelmon_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelmon_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
