package models

import (
	"errors"
	"time"
)

// Severity represents alert severity levels as reported by the alert engine
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for display, lowest first
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether the severity is one we render
func (s Severity) IsValid() bool {
	return s == SeverityWarning || s == SeverityCritical
}

// Stable metric names exposed by the generator and queried by the dashboard.
// These form the wire contract with the metric store and must not change
// across process restarts.
const (
	MetricAccuracy    = "model_accuracy"
	MetricPrecision   = "model_precision"
	MetricRecall      = "model_recall"
	MetricF1Score     = "model_f1_score"
	MetricPredictions = "total_predictions"
	MetricErrors      = "total_errors"
	MetricLatency     = "prediction_latency_seconds"
	MetricCPUPercent  = "cpu_usage_percent"
	MetricMemoryMb    = "memory_usage_mb"
)

// GaugeMetricNames lists the instant-queryable metrics the dashboard tracks,
// in display order.
var GaugeMetricNames = []string{
	MetricAccuracy,
	MetricPrecision,
	MetricRecall,
	MetricF1Score,
	MetricPredictions,
	MetricErrors,
	MetricCPUPercent,
	MetricMemoryMb,
}

// MetricSample is an immutable snapshot of one metric at one instant,
// emitted by the generator for external scraping or feeding
type MetricSample struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Validation errors
var (
	ErrEmptyMetricName = errors.New("metric sample name cannot be empty")
	ErrZeroTimestamp   = errors.New("metric sample timestamp cannot be zero")
)

// Validate checks structural invariants of a sample before it is published
func (m *MetricSample) Validate() error {
	if m.Name == "" {
		return ErrEmptyMetricName
	}
	if m.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// DashboardPoint is one historical observation retained for charting
type DashboardPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	Accuracy         float64   `json:"accuracy"`
	Precision        float64   `json:"precision"`
	Recall           float64   `json:"recall"`
	F1               float64   `json:"f1"`
	CPUPercent       float64   `json:"cpu_percent"`
	MemoryMb         float64   `json:"memory_mb"`
	TotalPredictions float64   `json:"total_predictions"`
	TotalErrors      float64   `json:"total_errors"`
}

// AlertView is a read-only projection of a firing alert for display.
// The dashboard formats what the alert engine reports; it never evaluates
// thresholds itself.
type AlertView struct {
	Name         string    `json:"name"`
	Severity     Severity  `json:"severity"`
	Description  string    `json:"description"`
	CurrentValue float64   `json:"current_value"`
	FiringSince  time.Time `json:"firing_since"`
}

// ConnectionState tracks the aggregator's view of its upstreams
type ConnectionState struct {
	Connected           bool      `json:"connected"`
	LastSuccessfulPoll  time.Time `json:"last_successful_poll"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// DerivedStats holds display values computed from the rolling history
type DerivedStats struct {
	// ErrorRate is delta(errors)/delta(predictions) over the last two
	// points; zero by convention when no predictions were made between them
	ErrorRate float64 `json:"error_rate"`

	// Percent change of each score between the last two points, keyed by
	// metric name. Absent until two points exist.
	PercentChange map[string]float64 `json:"percent_change,omitempty"`
}

// RenderSnapshot is the render-ready structure handed to the presentation
// layer. MetricsStale/AlertsStale flag halves that failed their last poll
// and are showing last-known-good data.
type RenderSnapshot struct {
	GeneratedAt   time.Time        `json:"generated_at"`
	Connection    ConnectionState  `json:"connection"`
	History       []DashboardPoint `json:"history"`
	CurrentAlerts []AlertView      `json:"current_alerts"`
	Stats         DerivedStats     `json:"stats"`

	// LatestValues holds the last-known-good value per tracked metric.
	// Unlike History it is also updated by partially successful polls.
	LatestValues map[string]float64 `json:"latest_values,omitempty"`

	MetricsStale bool `json:"metrics_stale"`
	AlertsStale  bool `json:"alerts_stale"`
}
