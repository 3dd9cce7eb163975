package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelmon/internal/config"
	"modelmon/internal/kafka"
	"modelmon/internal/logger"
	"modelmon/internal/metrics"
	"modelmon/internal/middleware"
	"modelmon/internal/simulator"
)

// Service owns the metrics generator loop: it advances the simulated model
// state on a fixed tick and publishes the result for scraping, optionally
// mirroring each tick's samples to a Kafka feed.
type Service struct {
	cfg        *config.Config
	state      *simulator.State
	feed       *kafka.Feed
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Service with given config
func New(cfg *config.Config) *Service {
	seed := cfg.Generator.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	state := simulator.New(simulator.Config{
		MaxDrift:      cfg.Generator.MaxDrift,
		LatencyWindow: cfg.Generator.LatencyWindow,
		Rand:          rand.New(rand.NewSource(seed)),
	})

	return &Service{
		cfg:   cfg,
		state: state,
	}
}

// State exposes the simulated state, mainly for tests
func (s *Service) State() *simulator.State {
	return s.state
}

// Run starts the tick loop and scrape endpoint and blocks until the context
// is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log := logger.WithComponent("generator")
	log.Info().
		Dur("tick_period", s.cfg.Generator.TickPeriod).
		Float64("max_drift", s.cfg.Generator.MaxDrift).
		Msg("generator starting")

	prometheus.MustRegister(simulator.NewCollector(s.state))

	if s.cfg.Kafka.Enabled {
		if err := s.initFeed(); err != nil {
			log.Error().Err(err).Msg("failed to initialize sample feed")
			return fmt.Errorf("failed to initialize sample feed: %w", err)
		}
		defer s.feed.Close()
	}

	s.initHTTPServer()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.Generator.ListenAddr).Msg("starting scrape endpoint")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("scrape endpoint error")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tickLoop(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	return s.shutdown()
}

// initFeed wires the optional Kafka sample feed
func (s *Service) initFeed() error {
	source, _ := os.Hostname()
	if source == "" {
		source = "generator"
	}
	feed, err := kafka.NewFeed(s.cfg.Kafka.Brokers, s.cfg.Kafka.Topic, source)
	if err != nil {
		return err
	}
	s.feed = feed

	log := logger.WithComponent("generator")
	log.Info().
		Strs("brokers", s.cfg.Kafka.Brokers).
		Str("topic", s.cfg.Kafka.Topic).
		Msg("sample feed initialized")
	return nil
}

// initHTTPServer sets up the scrape endpoint
func (s *Service) initHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/state", middleware.Chain(
		http.HandlerFunc(s.stateHandler),
		middleware.Recovery,
		middleware.Logging,
	))

	s.httpServer = &http.Server{
		Addr:         s.cfg.Generator.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// tickLoop advances the simulation on a fixed period until cancelled
func (s *Service) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Generator.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one state advance and publication. Failures are logged and
// counted; the loop itself must stay available.
func (s *Service) tick(ctx context.Context) {
	log := logger.WithComponent("generator")

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("tick panic recovered")
			metrics.PanicsRecovered.WithLabelValues("generator").Inc()
		}
	}()

	s.state.Tick()

	samples := s.state.Samples()
	metrics.SamplesPublishedTotal.Add(float64(len(samples)))

	snap := s.state.Current()
	log.Info().
		Float64("accuracy", snap.Accuracy).
		Float64("precision", snap.Precision).
		Float64("recall", snap.Recall).
		Float64("f1", snap.F1).
		Uint64("total_predictions", snap.TotalPredictions).
		Uint64("total_errors", snap.TotalErrors).
		Msg("updated metrics")

	if s.feed != nil {
		publishCtx, cancel := context.WithTimeout(ctx, s.cfg.Generator.TickPeriod/2)
		defer cancel()
		if err := s.feed.Publish(publishCtx, samples); err != nil {
			log.Error().Err(err).Msg("failed to publish samples to feed")
		}
	}
}

// shutdown stops the HTTP server and waits for the loop to drain
func (s *Service) shutdown() error {
	log := logger.WithComponent("generator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping scrape endpoint")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scrape endpoint shutdown error")
	}

	s.wg.Wait()

	if s.feed != nil {
		stats := s.feed.Stats()
		log.Info().
			Uint64("batches_sent", stats.BatchesSent).
			Uint64("batches_failed", stats.BatchesFailed).
			Msg("closing sample feed")
	}

	log.Info().Msg("generator stopped gracefully")
	return nil
}

// healthHandler reports liveness
func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// stateHandler returns the current samples as JSON, for debugging
func (s *Service) stateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state.Samples()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
