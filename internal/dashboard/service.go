package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelmon/internal/config"
	"modelmon/internal/logger"
	"modelmon/internal/metrics"
	"modelmon/internal/middleware"
	"modelmon/internal/models"
	"modelmon/internal/promquery"
	"modelmon/internal/state"
)

// snapshotCacheKey is where the last rendered snapshot lives in the
// snapshot cache.
const snapshotCacheKey = "modelmon:snapshot"

// Service runs the dashboard aggregator: the poll loop plus the HTTP API
// the presentation layer consumes.
type Service struct {
	cfg        *config.Config
	agg        *Aggregator
	cache      state.Store
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New constructs a Service wired to the configured metric store
func New(cfg *config.Config) *Service {
	client := promquery.NewClient(cfg.Dashboard.PrometheusURL, cfg.Dashboard.QueryTimeout)
	return &Service{
		cfg:   cfg,
		agg:   NewAggregator(cfg.Dashboard, client, client),
		cache: state.NewNoopStore(),
	}
}

// Aggregator exposes the underlying aggregator, mainly for tests
func (s *Service) Aggregator() *Aggregator {
	return s.agg
}

// Run starts the poll loop and snapshot API and blocks until the context
// is cancelled.
func (s *Service) Run(ctx context.Context) error {
	log := logger.WithComponent("dashboard")
	log.Info().
		Str("prometheus_url", s.cfg.Dashboard.PrometheusURL).
		Dur("poll_period", s.cfg.Dashboard.PollPeriod).
		Int("history_size", s.cfg.Dashboard.HistorySize).
		Msg("dashboard starting")

	if addr := s.cfg.Dashboard.RedisAddr; addr != "" {
		cacheCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		store, err := state.NewRedisStore(cacheCtx, addr, time.Hour)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("failed to connect snapshot cache")
			return fmt.Errorf("failed to connect snapshot cache: %w", err)
		}
		s.cache = store
		log.Info().Str("addr", addr).Msg("snapshot cache connected")
		s.logCachedSnapshot(ctx)
	}
	defer s.cache.Close()

	s.initHTTPServer()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.Dashboard.ListenAddr).Msg("starting snapshot API")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("snapshot API error")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollLoop(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	return s.shutdown()
}

// pollLoop polls upstreams on a fixed period. Polls are strictly
// sequential: each one is bounded by query timeouts shorter than the
// period, so a new poll never starts before the prior one finished.
func (s *Service) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Dashboard.PollPeriod)
	defer ticker.Stop()

	// First poll immediately rather than a full period in
	s.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Service) pollOnce(ctx context.Context) {
	s.agg.poll(ctx)
	s.cacheSnapshot(ctx)
}

// logCachedSnapshot reports the age of any snapshot a previous run left in
// the cache. History is not restored from it: a restart starts fresh and
// the cache only serves external consumers.
func (s *Service) logCachedSnapshot(ctx context.Context) {
	log := logger.WithComponent("dashboard")

	getCtx, cancel := context.WithTimeout(ctx, s.cfg.Dashboard.QueryTimeout)
	defer cancel()

	data, err := s.cache.Get(getCtx, snapshotCacheKey)
	if err != nil || data == nil {
		return
	}

	var snap models.RenderSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Msg("ignoring unreadable cached snapshot")
		return
	}
	log.Info().
		Time("generated_at", snap.GeneratedAt).
		Int("history_points", len(snap.History)).
		Msg("found snapshot from a previous run")
}

// cacheSnapshot writes the rendered snapshot to the snapshot cache so
// sibling consumers can read last-known-good state
func (s *Service) cacheSnapshot(ctx context.Context) {
	log := logger.WithComponent("dashboard")
	snap := s.agg.RenderSnapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("failed to serialize snapshot")
		metrics.SnapshotCacheErrors.Inc()
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, s.cfg.Dashboard.QueryTimeout)
	defer cancel()
	if err := s.cache.Set(cacheCtx, snapshotCacheKey, data); err != nil {
		log.Error().Err(err).Msg("failed to cache snapshot")
		metrics.SnapshotCacheErrors.Inc()
	}
}

// initHTTPServer sets up the snapshot API
func (s *Service) initHTTPServer() {
	r := mux.NewRouter()
	r.Handle("/api/snapshot", middleware.Chain(
		http.HandlerFunc(s.snapshotHandler),
		middleware.Recovery,
		middleware.Logging,
	)).Methods(http.MethodGet)
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         s.cfg.Dashboard.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// shutdown stops the HTTP server and waits for the poll loop to exit
func (s *Service) shutdown() error {
	log := logger.WithComponent("dashboard")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("stopping snapshot API")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("snapshot API shutdown error")
	}

	s.wg.Wait()
	log.Info().Msg("dashboard stopped gracefully")
	return nil
}

// snapshotHandler serves the render-ready snapshot. The read never blocks
// on a poll in flight.
func (s *Service) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.agg.RenderSnapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// healthHandler reports liveness and the upstream connection state
func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.agg.RenderSnapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","connected":%t,"timestamp":"%s"}`,
		snap.Connection.Connected, time.Now().Format(time.RFC3339))
}
