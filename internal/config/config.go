package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration errors are fatal: the process must not start with an
// undefined configuration.
var (
	ErrBadTickPeriod     = errors.New("generator tick period must be positive")
	ErrBadPollPeriod     = errors.New("dashboard poll period must be positive")
	ErrBadQueryTimeout   = errors.New("query timeout must be positive and shorter than the poll period")
	ErrBadHistorySize    = errors.New("history capacity must be positive")
	ErrBadFailureLimit   = errors.New("failure threshold must be positive")
	ErrBadDrift          = errors.New("max drift must be in (0, 0.5]")
	ErrBadLatencyWindow  = errors.New("latency window must be positive")
	ErrMissingPromURL    = errors.New("prometheus base URL is required")
	ErrKafkaNeedsBrokers = errors.New("kafka feed enabled but no brokers configured")
)

// GeneratorConfig holds settings for the metrics generator service
type GeneratorConfig struct {
	// ListenAddr serves the scrape endpoint
	ListenAddr string `yaml:"listen_addr"`
	// TickPeriod is how often simulated state advances
	TickPeriod time.Duration `yaml:"tick_period"`
	// MaxDrift bounds how far scores wander from their baselines
	MaxDrift float64 `yaml:"max_drift"`
	// Seed for the simulation RNG; 0 means seed from the clock
	Seed int64 `yaml:"seed"`
	// LatencyWindow caps the retained latency samples
	LatencyWindow int `yaml:"latency_window"`
}

// KafkaConfig holds settings for the optional sample feed
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// DashboardConfig holds settings for the dashboard aggregator service
type DashboardConfig struct {
	// ListenAddr serves the snapshot API
	ListenAddr string `yaml:"listen_addr"`
	// PrometheusURL is the metric store base address
	PrometheusURL string `yaml:"prometheus_url"`
	// PollPeriod is how often upstreams are polled
	PollPeriod time.Duration `yaml:"poll_period"`
	// QueryTimeout bounds each outbound query; must stay under PollPeriod
	// so a slow upstream cannot cause poll overlap
	QueryTimeout time.Duration `yaml:"query_timeout"`
	// HistorySize caps the rolling history
	HistorySize int `yaml:"history_size"`
	// FailureThreshold is how many consecutive failed polls flip the
	// connection state to disconnected
	FailureThreshold int `yaml:"failure_threshold"`
	// RedisAddr enables the snapshot cache when non-empty
	RedisAddr string `yaml:"redis_addr"`
}

// Config is the full runtime configuration for both binaries
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Generator GeneratorConfig `yaml:"generator"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Generator: GeneratorConfig{
			ListenAddr:    ":8000",
			TickPeriod:    5 * time.Second,
			MaxDrift:      0.05,
			Seed:          0,
			LatencyWindow: 1000,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Topic:   "model-metrics",
		},
		Dashboard: DashboardConfig{
			ListenAddr:       ":10000",
			PrometheusURL:    "http://localhost:9090",
			PollPeriod:       2 * time.Second,
			QueryTimeout:     time.Second,
			HistorySize:      50,
			FailureThreshold: 3,
		},
	}
}

// Load builds the config from defaults, an optional YAML file, and
// environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from MODELMON_* environment variables.
// PROM_URL is honored without the prefix for parity with the original
// deployment's convention.
func (c *Config) applyEnv() {
	if v := os.Getenv("MODELMON_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MODELMON_GENERATOR_ADDR"); v != "" {
		c.Generator.ListenAddr = v
	}
	if d, ok := envDuration("MODELMON_TICK_PERIOD"); ok {
		c.Generator.TickPeriod = d
	}
	if v := os.Getenv("MODELMON_MAX_DRIFT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Generator.MaxDrift = f
		}
	}
	if v := os.Getenv("MODELMON_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Generator.Seed = n
		}
	}
	if v := os.Getenv("MODELMON_DASHBOARD_ADDR"); v != "" {
		c.Dashboard.ListenAddr = v
	}
	if v := os.Getenv("PROM_URL"); v != "" {
		c.Dashboard.PrometheusURL = v
	}
	if d, ok := envDuration("MODELMON_POLL_PERIOD"); ok {
		c.Dashboard.PollPeriod = d
	}
	if d, ok := envDuration("MODELMON_QUERY_TIMEOUT"); ok {
		c.Dashboard.QueryTimeout = d
	}
	if v := os.Getenv("MODELMON_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dashboard.HistorySize = n
		}
	}
	if v := os.Getenv("MODELMON_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dashboard.FailureThreshold = n
		}
	}
	if v := os.Getenv("MODELMON_REDIS_ADDR"); v != "" {
		c.Dashboard.RedisAddr = v
	}
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Validate rejects configurations the loops cannot safely run with
func (c *Config) Validate() error {
	if c.Generator.TickPeriod <= 0 {
		return ErrBadTickPeriod
	}
	if c.Generator.MaxDrift <= 0 || c.Generator.MaxDrift > 0.5 {
		return ErrBadDrift
	}
	if c.Generator.LatencyWindow <= 0 {
		return ErrBadLatencyWindow
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return ErrKafkaNeedsBrokers
	}
	if c.Dashboard.PollPeriod <= 0 {
		return ErrBadPollPeriod
	}
	if c.Dashboard.QueryTimeout <= 0 || c.Dashboard.QueryTimeout >= c.Dashboard.PollPeriod {
		return ErrBadQueryTimeout
	}
	if c.Dashboard.HistorySize <= 0 {
		return ErrBadHistorySize
	}
	if c.Dashboard.FailureThreshold <= 0 {
		return ErrBadFailureLimit
	}
	if c.Dashboard.PrometheusURL == "" {
		return ErrMissingPromURL
	}
	return nil
}
