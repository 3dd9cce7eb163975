package simulator

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func newTestState(cfg Config) *State {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(42))
	}
	if cfg.Now == nil {
		base := time.Unix(1700000000, 0)
		n := 0
		cfg.Now = func() time.Time {
			n++
			return base.Add(time.Duration(n) * time.Second)
		}
	}
	return New(cfg)
}

func TestTickInvariants(t *testing.T) {
	s := newTestState(Config{})

	var prevPredictions, prevErrors uint64
	for i := 0; i < 500; i++ {
		s.Tick()
		snap := s.Current()

		for name, v := range map[string]float64{
			"accuracy":  snap.Accuracy,
			"precision": snap.Precision,
			"recall":    snap.Recall,
			"f1":        snap.F1,
		} {
			if v < 0 || v > 1 {
				t.Fatalf("tick %d: %s = %f outside [0,1]", i, name, v)
			}
		}

		if snap.TotalPredictions < prevPredictions {
			t.Fatalf("tick %d: totalPredictions decreased", i)
		}
		if snap.TotalErrors < prevErrors {
			t.Fatalf("tick %d: totalErrors decreased", i)
		}
		if snap.TotalErrors > snap.TotalPredictions {
			t.Fatalf("tick %d: totalErrors %d > totalPredictions %d",
				i, snap.TotalErrors, snap.TotalPredictions)
		}
		prevPredictions = snap.TotalPredictions
		prevErrors = snap.TotalErrors

		if snap.CPUPercent < 0 || snap.CPUPercent > 100 {
			t.Fatalf("tick %d: cpu %f outside [0,100]", i, snap.CPUPercent)
		}
		if snap.MemoryMb < 0 {
			t.Fatalf("tick %d: memory %f negative", i, snap.MemoryMb)
		}
	}
}

func TestF1IsHarmonicMean(t *testing.T) {
	s := newTestState(Config{})

	for i := 0; i < 100; i++ {
		s.Tick()
		snap := s.Current()

		want := 2 * snap.Precision * snap.Recall / (snap.Precision + snap.Recall)
		if math.Abs(snap.F1-want) > 1e-12 {
			t.Fatalf("tick %d: f1 = %f, want harmonic mean %f", i, snap.F1, want)
		}
	}
}

func TestDriftStaysWithinBand(t *testing.T) {
	const delta = 0.02
	baselines := DefaultBaselines()
	baselines.Accuracy = 0.95

	s := newTestState(Config{
		Baselines: baselines,
		MaxDrift:  delta,
	})

	for i := 0; i < 100; i++ {
		s.Tick()
		acc := s.Current().Accuracy
		if acc < 0.95-delta || acc > 0.95+delta {
			t.Fatalf("tick %d: accuracy %f left band [%f, %f]", i, acc, 0.95-delta, 0.95+delta)
		}
	}

	if s.Current().TotalPredictions == 0 {
		t.Error("expected predictions after 100 ticks")
	}
}

func TestLatencyWindowBounded(t *testing.T) {
	s := newTestState(Config{LatencyWindow: 10})

	for i := 0; i < 100; i++ {
		s.ObserveLatency(float64(i+1) * 0.001)
	}

	if got := len(s.latWindow); got != 10 {
		t.Errorf("window length = %d, want 10", got)
	}
	snap := s.Current()
	if snap.LatencyCount != 100 {
		t.Errorf("lifetime count = %d, want 100", snap.LatencyCount)
	}
	// Only the newest 10 samples feed the quantile estimate
	if math.Abs(snap.LatencyP99-0.100) > 1e-9 {
		t.Errorf("p99 = %f, want 0.100", snap.LatencyP99)
	}
}

func TestNegativeLatencyIgnored(t *testing.T) {
	s := newTestState(Config{})
	s.ObserveLatency(-1)
	if s.Current().LatencyCount != 0 {
		t.Error("negative latency should be discarded")
	}
}

func TestQuantileNearestRank(t *testing.T) {
	window := make([]float64, 100)
	for i := range window {
		window[i] = float64(i + 1)
	}

	tests := []struct {
		q    float64
		want float64
	}{
		{0.50, 50},
		{0.95, 95},
		{0.99, 99},
		{1.0, 100},
	}
	for _, tt := range tests {
		if got := quantile(window, tt.q); got != tt.want {
			t.Errorf("quantile(%.2f) = %f, want %f", tt.q, got, tt.want)
		}
	}

	if got := quantile(nil, 0.5); got != 0 {
		t.Errorf("quantile of empty window = %f, want 0", got)
	}
}

func TestSamplesContract(t *testing.T) {
	s := newTestState(Config{})
	s.Tick()

	samples := s.Samples()
	names := make(map[string]bool, len(samples))
	for _, sample := range samples {
		if err := sample.Validate(); err != nil {
			t.Errorf("sample %s invalid: %v", sample.Name, err)
		}
		if len(sample.Labels) == 0 {
			names[sample.Name] = true
		}
	}

	want := []string{
		"model_accuracy", "model_precision", "model_recall", "model_f1_score",
		"total_predictions", "total_errors",
		"cpu_usage_percent", "memory_usage_mb",
		"prediction_latency_seconds_count", "prediction_latency_seconds_sum",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("missing sample %s", name)
		}
	}
}

func TestSnapshotBeforeFirstTick(t *testing.T) {
	s := newTestState(Config{})
	snap := s.Current()

	if snap == nil {
		t.Fatal("expected an initial snapshot")
	}
	if snap.Accuracy != DefaultBaselines().Accuracy {
		t.Errorf("initial accuracy = %f, want baseline %f", snap.Accuracy, DefaultBaselines().Accuracy)
	}
	if snap.TotalPredictions != 0 {
		t.Errorf("initial predictions = %d, want 0", snap.TotalPredictions)
	}
}

func TestDeterministicWithSeed(t *testing.T) {
	run := func() *Snapshot {
		s := newTestState(Config{Rand: rand.New(rand.NewSource(7))})
		for i := 0; i < 50; i++ {
			s.Tick()
		}
		return s.Current()
	}

	a, b := run(), run()
	if a.Accuracy != b.Accuracy || a.TotalPredictions != b.TotalPredictions || a.TotalErrors != b.TotalErrors {
		t.Error("same seed should reproduce the same trajectory")
	}
}
