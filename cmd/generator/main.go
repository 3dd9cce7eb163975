package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelmon/internal/config"
	"modelmon/internal/generator"
	"modelmon/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("MODELMON_CONFIG"), "path to config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger.Init(cfg.LogLevel)

	g := generator.New(cfg)

	go func() {
		if err := g.Run(ctx); err != nil {
			logger.Logger.Error().Err(err).Msg("generator exited")
			cancel()
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		logger.Logger.Info().Msg("shutting down")
		cancel()
	case <-ctx.Done():
	}

	// give graceful shutdown some time
	time.Sleep(500 * time.Millisecond)
	logger.Logger.Info().Msg("exited")
}
