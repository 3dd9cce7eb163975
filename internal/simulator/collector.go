package simulator

import (
	"github.com/prometheus/client_golang/prometheus"

	"modelmon/internal/models"
)

// Collector exposes the simulated state under the stable contract names.
// It reads the last committed snapshot only, so scrapes never block on a
// tick and never observe a half-applied one.
type Collector struct {
	state *State

	accuracy    *prometheus.Desc
	precision   *prometheus.Desc
	recall      *prometheus.Desc
	f1          *prometheus.Desc
	predictions *prometheus.Desc
	errors      *prometheus.Desc
	latency     *prometheus.Desc
	cpu         *prometheus.Desc
	memory      *prometheus.Desc
}

// NewCollector builds a Collector over the given state
func NewCollector(state *State) *Collector {
	return &Collector{
		state:       state,
		accuracy:    prometheus.NewDesc(models.MetricAccuracy, "Current model accuracy", nil, nil),
		precision:   prometheus.NewDesc(models.MetricPrecision, "Current model precision", nil, nil),
		recall:      prometheus.NewDesc(models.MetricRecall, "Current model recall", nil, nil),
		f1:          prometheus.NewDesc(models.MetricF1Score, "Current model F1 score", nil, nil),
		predictions: prometheus.NewDesc(models.MetricPredictions, "Total number of predictions made", nil, nil),
		errors:      prometheus.NewDesc(models.MetricErrors, "Total number of prediction errors", nil, nil),
		latency:     prometheus.NewDesc(models.MetricLatency, "Latency of model predictions", nil, nil),
		cpu:         prometheus.NewDesc(models.MetricCPUPercent, "CPU usage percentage", nil, nil),
		memory:      prometheus.NewDesc(models.MetricMemoryMb, "Memory usage in MB", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accuracy
	ch <- c.precision
	ch <- c.recall
	ch <- c.f1
	ch <- c.predictions
	ch <- c.errors
	ch <- c.latency
	ch <- c.cpu
	ch <- c.memory
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.state.Current()

	ch <- prometheus.MustNewConstMetric(c.accuracy, prometheus.GaugeValue, snap.Accuracy)
	ch <- prometheus.MustNewConstMetric(c.precision, prometheus.GaugeValue, snap.Precision)
	ch <- prometheus.MustNewConstMetric(c.recall, prometheus.GaugeValue, snap.Recall)
	ch <- prometheus.MustNewConstMetric(c.f1, prometheus.GaugeValue, snap.F1)
	ch <- prometheus.MustNewConstMetric(c.predictions, prometheus.CounterValue, float64(snap.TotalPredictions))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(snap.TotalErrors))
	ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.GaugeValue, snap.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, snap.MemoryMb)
	ch <- prometheus.MustNewConstHistogram(c.latency, snap.LatencyCount, snap.LatencySum, snap.LatencyBuckets)
}
