package dashboard

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"modelmon/internal/config"
	"modelmon/internal/history"
	"modelmon/internal/logger"
	"modelmon/internal/metrics"
	"modelmon/internal/models"
)

// MetricSource answers instant queries against the metric store
type MetricSource interface {
	InstantQuery(ctx context.Context, metric string) (float64, time.Time, error)
}

// AlertSource lists currently-firing alerts from the alert engine
type AlertSource interface {
	FiringAlerts(ctx context.Context) ([]models.AlertView, error)
}

// Aggregator polls the metric store and alert engine on a fixed period,
// maintains a bounded rolling history, and keeps a render-ready snapshot
// for the presentation layer. The poll loop is the only writer; readers
// get the last committed snapshot via an atomic pointer.
type Aggregator struct {
	cfg    config.DashboardConfig
	source MetricSource
	alerts AlertSource
	now    func() time.Time

	mu         sync.Mutex
	hist       *history.Ring
	conn       models.ConnectionState
	lastValues map[string]float64
	lastAlerts []models.AlertView
	hasValues  bool
	hasAlerts  bool

	metricsStale bool
	alertsStale  bool

	snapshot atomic.Pointer[models.RenderSnapshot]
}

// NewAggregator builds an aggregator in the Disconnected state; it must not
// claim connectivity before the first successful poll.
func NewAggregator(cfg config.DashboardConfig, source MetricSource, alerts AlertSource) *Aggregator {
	a := &Aggregator{
		cfg:        cfg,
		source:     source,
		alerts:     alerts,
		now:        time.Now,
		hist:       history.New(cfg.HistorySize),
		lastValues: make(map[string]float64, len(models.GaugeMetricNames)),
	}
	a.mu.Lock()
	a.commitLocked()
	a.mu.Unlock()
	return a
}

// pollResult carries one poll's upstream answers
type pollResult struct {
	values    map[string]float64
	metricsOK bool
	alerts    []models.AlertView
	alertsOK  bool
}

// poll issues one instant query per tracked metric and one alert query,
// then commits the outcome. A failure on either half counts as a failed
// poll for connection-state purposes, but good halves are still applied.
func (a *Aggregator) poll(ctx context.Context) {
	start := time.Now()
	res := a.query(ctx)
	a.apply(res)

	status := "failed"
	switch {
	case res.metricsOK && res.alertsOK:
		status = "success"
	case res.metricsOK || res.alertsOK:
		status = "partial"
	}
	metrics.PollsTotal.WithLabelValues(status).Inc()
	metrics.PollDuration.Observe(time.Since(start).Seconds())
}

// query gathers upstream data without touching aggregator state
func (a *Aggregator) query(ctx context.Context) pollResult {
	log := logger.WithComponent("aggregator")

	res := pollResult{
		values:    make(map[string]float64, len(models.GaugeMetricNames)),
		metricsOK: true,
	}

	for _, name := range models.GaugeMetricNames {
		v, _, err := a.source.InstantQuery(ctx, name)
		if err != nil {
			log.Error().Err(err).Str("metric", name).Msg("instant query failed")
			res.metricsOK = false
			break
		}
		res.values[name] = v
	}

	alerts, err := a.alerts.FiringAlerts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("alert query failed")
	} else {
		res.alerts = alerts
		res.alertsOK = true
	}
	return res
}

// apply commits a poll outcome to the aggregator's owned state
func (a *Aggregator) apply(res pollResult) {
	log := logger.WithComponent("aggregator")
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	if res.metricsOK {
		a.lastValues = res.values
		a.hasValues = true
		a.metricsStale = false
	} else if a.hasValues {
		a.metricsStale = true
	}

	if res.alertsOK {
		a.lastAlerts = sortAlerts(res.alerts)
		a.hasAlerts = true
		a.alertsStale = false
	} else if a.hasAlerts {
		a.alertsStale = true
	}

	if res.metricsOK && res.alertsOK {
		wasDisconnected := !a.conn.Connected
		a.conn.Connected = true
		a.conn.LastSuccessfulPoll = now
		a.conn.ConsecutiveFailures = 0
		if wasDisconnected {
			log.Info().Msg("reconnected to metric store")
		}

		point := models.DashboardPoint{
			Timestamp:        now,
			Accuracy:         res.values[models.MetricAccuracy],
			Precision:        res.values[models.MetricPrecision],
			Recall:           res.values[models.MetricRecall],
			F1:               res.values[models.MetricF1Score],
			CPUPercent:       res.values[models.MetricCPUPercent],
			MemoryMb:         res.values[models.MetricMemoryMb],
			TotalPredictions: res.values[models.MetricPredictions],
			TotalErrors:      res.values[models.MetricErrors],
		}
		if err := a.hist.Append(point); err != nil {
			// Logic error, not fatal: drop the point, keep polling
			log.Error().Err(err).Time("timestamp", point.Timestamp).Msg("history insert rejected")
			metrics.HistoryRejectsTotal.Inc()
		}
	} else {
		a.conn.ConsecutiveFailures++
		if a.conn.Connected && a.conn.ConsecutiveFailures >= a.cfg.FailureThreshold {
			a.conn.Connected = false
			log.Warn().
				Int("consecutive_failures", a.conn.ConsecutiveFailures).
				Msg("disconnected from metric store")
		}
	}

	a.commitLocked()
}

// commitLocked rebuilds the render snapshot from current state.
// Caller holds a.mu.
func (a *Aggregator) commitLocked() {
	snap := &models.RenderSnapshot{
		GeneratedAt:   a.now(),
		Connection:    a.conn,
		History:       a.hist.Points(),
		CurrentAlerts: append([]models.AlertView(nil), a.lastAlerts...),
		Stats:         a.deriveStatsLocked(),
		MetricsStale:  a.metricsStale,
		AlertsStale:   a.alertsStale,
	}
	if a.hasValues {
		snap.LatestValues = make(map[string]float64, len(a.lastValues))
		for k, v := range a.lastValues {
			snap.LatestValues[k] = v
		}
	}
	a.snapshot.Store(snap)
}

// deriveStatsLocked computes display stats over the last two history points
func (a *Aggregator) deriveStatsLocked() models.DerivedStats {
	prev, last, ok := a.hist.LastTwo()
	if !ok {
		return models.DerivedStats{}
	}

	stats := models.DerivedStats{
		PercentChange: make(map[string]float64, 4),
	}

	dPred := last.TotalPredictions - prev.TotalPredictions
	if dPred > 0 {
		// Zero by convention when no predictions landed between points
		stats.ErrorRate = (last.TotalErrors - prev.TotalErrors) / dPred
	}

	changes := []struct {
		name       string
		prev, last float64
	}{
		{models.MetricAccuracy, prev.Accuracy, last.Accuracy},
		{models.MetricPrecision, prev.Precision, last.Precision},
		{models.MetricRecall, prev.Recall, last.Recall},
		{models.MetricF1Score, prev.F1, last.F1},
	}
	for _, c := range changes {
		if c.prev != 0 {
			stats.PercentChange[c.name] = (c.last - c.prev) / c.prev * 100
		}
	}
	return stats
}

// RenderSnapshot returns the last committed render-ready snapshot. It is a
// pure read: safe at any time, including mid-poll, and never blocks on I/O.
func (a *Aggregator) RenderSnapshot() models.RenderSnapshot {
	return *a.snapshot.Load()
}

// sortAlerts orders alerts critical-first, then longest-firing first, so
// the most actionable alerts lead.
func sortAlerts(alerts []models.AlertView) []models.AlertView {
	out := append([]models.AlertView(nil), alerts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].FiringSince.Before(out[j].FiringSince)
	})
	return out
}
