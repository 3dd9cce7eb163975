package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"modelmon/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	if err := config.Default().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{"valid", func(c *config.Config) {}, nil},
		{"zero tick period", func(c *config.Config) { c.Generator.TickPeriod = 0 }, config.ErrBadTickPeriod},
		{"negative drift", func(c *config.Config) { c.Generator.MaxDrift = -0.1 }, config.ErrBadDrift},
		{"excessive drift", func(c *config.Config) { c.Generator.MaxDrift = 0.9 }, config.ErrBadDrift},
		{"zero latency window", func(c *config.Config) { c.Generator.LatencyWindow = 0 }, config.ErrBadLatencyWindow},
		{"kafka without brokers", func(c *config.Config) { c.Kafka.Enabled = true }, config.ErrKafkaNeedsBrokers},
		{"zero poll period", func(c *config.Config) { c.Dashboard.PollPeriod = 0 }, config.ErrBadPollPeriod},
		{"timeout exceeds poll period", func(c *config.Config) { c.Dashboard.QueryTimeout = 3 * time.Second }, config.ErrBadQueryTimeout},
		{"zero history", func(c *config.Config) { c.Dashboard.HistorySize = 0 }, config.ErrBadHistorySize},
		{"zero failure threshold", func(c *config.Config) { c.Dashboard.FailureThreshold = 0 }, config.ErrBadFailureLimit},
		{"missing prometheus url", func(c *config.Config) { c.Dashboard.PrometheusURL = "" }, config.ErrMissingPromURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
log_level: debug
generator:
  tick_period: 1s
  max_drift: 0.02
dashboard:
  prometheus_url: http://prom:9090
  poll_period: 4s
  query_timeout: 2s
  history_size: 25
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %s", cfg.LogLevel)
	}
	if cfg.Generator.TickPeriod != time.Second {
		t.Errorf("tick period = %v", cfg.Generator.TickPeriod)
	}
	if cfg.Generator.MaxDrift != 0.02 {
		t.Errorf("max drift = %f", cfg.Generator.MaxDrift)
	}
	if cfg.Dashboard.PrometheusURL != "http://prom:9090" {
		t.Errorf("prometheus url = %s", cfg.Dashboard.PrometheusURL)
	}
	if cfg.Dashboard.HistorySize != 25 {
		t.Errorf("history size = %d", cfg.Dashboard.HistorySize)
	}
	// Untouched fields keep their defaults
	if cfg.Dashboard.FailureThreshold != 3 {
		t.Errorf("failure threshold = %d, want default 3", cfg.Dashboard.FailureThreshold)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PROM_URL", "http://override:9090")
	t.Setenv("MODELMON_POLL_PERIOD", "10s")
	t.Setenv("MODELMON_QUERY_TIMEOUT", "3s")
	t.Setenv("MODELMON_HISTORY_SIZE", "80")
	t.Setenv("MODELMON_SEED", "1234")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Dashboard.PrometheusURL != "http://override:9090" {
		t.Errorf("prometheus url = %s", cfg.Dashboard.PrometheusURL)
	}
	if cfg.Dashboard.PollPeriod != 10*time.Second {
		t.Errorf("poll period = %v", cfg.Dashboard.PollPeriod)
	}
	if cfg.Dashboard.HistorySize != 80 {
		t.Errorf("history size = %d", cfg.Dashboard.HistorySize)
	}
	if cfg.Generator.Seed != 1234 {
		t.Errorf("seed = %d", cfg.Generator.Seed)
	}
}

func TestLoadRejectsInvalidCombination(t *testing.T) {
	t.Setenv("MODELMON_POLL_PERIOD", "1s")
	t.Setenv("MODELMON_QUERY_TIMEOUT", "2s")

	if _, err := config.Load(""); !errors.Is(err, config.ErrBadQueryTimeout) {
		t.Errorf("Load error = %v, want ErrBadQueryTimeout", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
