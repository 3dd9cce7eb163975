package simulator

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"modelmon/internal/logger"
	"modelmon/internal/metrics"
	"modelmon/internal/models"
)

// LatencyBuckets are the histogram upper bounds for prediction latency,
// in seconds.
var LatencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0}

// Baselines are the targets the simulated scores revert toward
type Baselines struct {
	Accuracy   float64
	Precision  float64
	Recall     float64
	CPUPercent float64
	MemoryMb   float64
}

// DefaultBaselines mirror a believable production classifier
func DefaultBaselines() Baselines {
	return Baselines{
		Accuracy:   0.85,
		Precision:  0.83,
		Recall:     0.87,
		CPUPercent: 50,
		MemoryMb:   500,
	}
}

// Config controls the simulation. Drift magnitude and randomness are
// injected so tests can pin seeds and assert statistical properties.
type Config struct {
	Baselines Baselines

	// MaxDrift bounds how far each score may wander from its baseline
	MaxDrift float64

	// CPU walks within [CPULow, CPUHigh], memory within [MemLow, MemHigh]
	CPULow, CPUHigh float64
	MemLow, MemHigh float64

	// MaxBatch caps predictions added per tick (at least 1 is added)
	MaxBatch int

	// LatencyWindow caps retained latency observations
	LatencyWindow int

	// Rand drives all perturbations; nil means time-seeded
	Rand *rand.Rand

	// Now supplies timestamps; nil means time.Now
	Now func() time.Time
}

func (c *Config) fillDefaults() {
	if c.Baselines == (Baselines{}) {
		c.Baselines = DefaultBaselines()
	}
	if c.MaxDrift <= 0 {
		c.MaxDrift = 0.05
	}
	if c.CPUHigh <= c.CPULow {
		c.CPULow, c.CPUHigh = 20, 80
	}
	if c.MemHigh <= c.MemLow {
		c.MemLow, c.MemHigh = 200, 800
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 10
	}
	if c.LatencyWindow <= 0 {
		c.LatencyWindow = 1000
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Snapshot is an immutable view of the simulated state after a tick.
// Latency buckets are cumulative counts keyed by upper bound.
type Snapshot struct {
	TakenAt time.Time

	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64

	TotalPredictions uint64
	TotalErrors      uint64

	CPUPercent float64
	MemoryMb   float64

	LatencyCount   uint64
	LatencySum     float64
	LatencyBuckets map[float64]uint64
	LatencyP50     float64
	LatencyP95     float64
	LatencyP99     float64
}

// State is the simulated model state machine. Tick is the single writer;
// Snapshot readers get the last fully-committed view via an atomic pointer
// swap, never a torn mix of fields.
type State struct {
	cfg Config

	mu        sync.Mutex
	accuracy  float64
	precision float64
	recall    float64
	f1        float64

	totalPredictions uint64
	totalErrors      uint64

	cpuPercent float64
	memoryMb   float64

	latWindow []float64 // bounded, oldest first
	latCount  uint64    // lifetime observations
	latSum    float64
	latHist   map[float64]uint64 // lifetime cumulative bucket counts

	current atomic.Pointer[Snapshot]
}

// New constructs a State at its baseline values and commits an initial
// snapshot so scrapes before the first tick see valid data.
func New(cfg Config) *State {
	cfg.fillDefaults()

	s := &State{
		cfg:        cfg,
		accuracy:   cfg.Baselines.Accuracy,
		precision:  cfg.Baselines.Precision,
		recall:     cfg.Baselines.Recall,
		cpuPercent: cfg.Baselines.CPUPercent,
		memoryMb:   cfg.Baselines.MemoryMb,
		latWindow:  make([]float64, 0, cfg.LatencyWindow),
		latHist:    make(map[float64]uint64, len(LatencyBuckets)),
	}
	s.f1 = harmonicMean(s.precision, s.recall)
	s.commit()
	return s
}

// Tick advances the simulation by one step. Every output stays within its
// documented domain afterward; any clamp is counted and logged, never fatal.
func (s *State) Tick() {
	start := time.Now()
	s.mu.Lock()

	s.accuracy = s.driftScore(models.MetricAccuracy, s.accuracy, s.cfg.Baselines.Accuracy)
	s.precision = s.driftScore(models.MetricPrecision, s.precision, s.cfg.Baselines.Precision)
	s.recall = s.driftScore(models.MetricRecall, s.recall, s.cfg.Baselines.Recall)
	// F1 is derived, never drifted on its own, so the four scores stay
	// internally consistent.
	s.f1 = harmonicMean(s.precision, s.recall)

	batch := 1 + s.cfg.Rand.Intn(s.cfg.MaxBatch)
	s.totalPredictions += uint64(batch)

	// Error increment is inversely correlated with accuracy and can never
	// exceed the prediction increment.
	errs := 0
	for i := 0; i < batch; i++ {
		if s.cfg.Rand.Float64() < (1 - s.accuracy) {
			errs++
		}
		s.observeLatencyLocked(0.001 + s.cfg.Rand.Float64()*0.099)
	}
	s.totalErrors += uint64(errs)

	s.cpuPercent = s.walk(models.MetricCPUPercent, s.cpuPercent, s.cfg.CPULow, s.cfg.CPUHigh)
	s.memoryMb = s.walk(models.MetricMemoryMb, s.memoryMb, s.cfg.MemLow, s.cfg.MemHigh)

	s.commit()
	s.mu.Unlock()

	metrics.TicksTotal.Inc()
	metrics.TickDuration.Observe(time.Since(start).Seconds())
}

// ObserveLatency records an externally supplied latency sample in seconds
func (s *State) ObserveLatency(seconds float64) {
	if seconds < 0 {
		return
	}
	s.mu.Lock()
	s.observeLatencyLocked(seconds)
	s.commit()
	s.mu.Unlock()
}

func (s *State) observeLatencyLocked(seconds float64) {
	if len(s.latWindow) >= s.cfg.LatencyWindow {
		copy(s.latWindow, s.latWindow[1:])
		s.latWindow = s.latWindow[:len(s.latWindow)-1]
	}
	s.latWindow = append(s.latWindow, seconds)
	s.latCount++
	s.latSum += seconds
	for _, ub := range LatencyBuckets {
		if seconds <= ub {
			s.latHist[ub]++
		}
	}
}

// driftScore applies a mean-reverting step plus noise, then clamps to the
// drift band around the baseline and to [0,1]
func (s *State) driftScore(name string, v, baseline float64) float64 {
	d := s.cfg.MaxDrift
	step := 0.25*(baseline-v) + (s.cfg.Rand.Float64()*2-1)*d/4
	next := v + step

	if next < baseline-d || next > baseline+d {
		next = clamp(next, baseline-d, baseline+d)
		s.recordClamp(name, next)
	}
	if next < 0 || next > 1 {
		next = clamp(next, 0, 1)
		s.recordClamp(name, next)
	}
	return next
}

// walk applies a bounded random step within [low, high]
func (s *State) walk(name string, v, low, high float64) float64 {
	step := (s.cfg.Rand.Float64()*2 - 1) * (high - low) * 0.05
	next := v + step
	if next < low || next > high {
		next = clamp(next, low, high)
		s.recordClamp(name, next)
	}
	return next
}

func (s *State) recordClamp(name string, value float64) {
	metrics.StateClampsTotal.WithLabelValues(name).Inc()
	log := logger.WithComponent("simulator")
	log.Warn().
		Str("metric", name).
		Float64("clamped_to", value).
		Msg("simulated value clamped back into its domain")
}

// commit publishes the current state as an immutable snapshot.
// Caller holds s.mu.
func (s *State) commit() {
	buckets := make(map[float64]uint64, len(LatencyBuckets))
	for _, ub := range LatencyBuckets {
		buckets[ub] = s.latHist[ub]
	}

	snap := &Snapshot{
		TakenAt:          s.cfg.Now(),
		Accuracy:         s.accuracy,
		Precision:        s.precision,
		Recall:           s.recall,
		F1:               s.f1,
		TotalPredictions: s.totalPredictions,
		TotalErrors:      s.totalErrors,
		CPUPercent:       s.cpuPercent,
		MemoryMb:         s.memoryMb,
		LatencyCount:     s.latCount,
		LatencySum:       s.latSum,
		LatencyBuckets:   buckets,
	}
	snap.LatencyP50 = quantile(s.latWindow, 0.50)
	snap.LatencyP95 = quantile(s.latWindow, 0.95)
	snap.LatencyP99 = quantile(s.latWindow, 0.99)

	s.current.Store(snap)
}

// Current returns the last committed snapshot. Safe to call concurrently
// with Tick; never blocks on it.
func (s *State) Current() *Snapshot {
	return s.current.Load()
}

// Samples flattens the current snapshot into publishable metric samples,
// one per tracked metric, with stable names and label sets.
func (s *State) Samples() []models.MetricSample {
	snap := s.Current()
	at := snap.TakenAt

	samples := []models.MetricSample{
		{Name: models.MetricAccuracy, Value: snap.Accuracy, Timestamp: at},
		{Name: models.MetricPrecision, Value: snap.Precision, Timestamp: at},
		{Name: models.MetricRecall, Value: snap.Recall, Timestamp: at},
		{Name: models.MetricF1Score, Value: snap.F1, Timestamp: at},
		{Name: models.MetricPredictions, Value: float64(snap.TotalPredictions), Timestamp: at},
		{Name: models.MetricErrors, Value: float64(snap.TotalErrors), Timestamp: at},
		{Name: models.MetricCPUPercent, Value: snap.CPUPercent, Timestamp: at},
		{Name: models.MetricMemoryMb, Value: snap.MemoryMb, Timestamp: at},
		{Name: models.MetricLatency + "_count", Value: float64(snap.LatencyCount), Timestamp: at},
		{Name: models.MetricLatency + "_sum", Value: snap.LatencySum, Timestamp: at},
	}
	quantiles := []struct {
		q string
		v float64
	}{
		{"0.5", snap.LatencyP50},
		{"0.95", snap.LatencyP95},
		{"0.99", snap.LatencyP99},
	}
	for _, qv := range quantiles {
		samples = append(samples, models.MetricSample{
			Name:      models.MetricLatency,
			Value:     qv.v,
			Labels:    map[string]string{"quantile": qv.q},
			Timestamp: at,
		})
	}
	return samples
}

// quantile is an exact nearest-rank estimate over the bounded window
func quantile(window []float64, q float64) float64 {
	if len(window) == 0 {
		return 0
	}
	sorted := make([]float64, len(window))
	copy(sorted, window)
	sort.Float64s(sorted)

	rank := int(q*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func harmonicMean(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
