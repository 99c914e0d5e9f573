package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/csv-indexer/internal/app"
	"github.com/V4T54L/csv-indexer/internal/pkg/config"
	"github.com/V4T54L/csv-indexer/internal/pkg/logger"
	"github.com/V4T54L/csv-indexer/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.RedisURL == "" {
		slog.Error("REDIS_URL is required by the replay worker")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting replay worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	a, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		log.Error("failed to initialize replay worker", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Error("metrics server failed", "error", err)
		}
	}()

	go a.DeadLetters.StartHealthCheck(ctx, 5*time.Second)

	// Create a unique consumer name for this instance
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "replay-default"
	}

	replay := usecase.NewReplayDeadLettersUseCase(a.DeadLetters, a.Search, log, app.ReplayGroup, consumerName,
		cfg.ReplayBatchSize, cfg.ReplayMinIdle, cfg.IndexMaxRetries, cfg.IndexRetryWaitMax)

	ticker := time.NewTicker(cfg.ReplayInterval)
	defer ticker.Stop()

	log.Info("replay worker started", "group", app.ReplayGroup, "consumer", consumerName)

Loop:
	for {
		select {
		case <-ticker.C:
			// Drain full batches back to back; wait for the next tick once the stream runs dry.
			for {
				n, err := replay.ProcessBatch(ctx)
				if err != nil {
					log.Error("error processing batch", "error", err)
				}
				if err != nil || n < cfg.ReplayBatchSize || ctx.Err() != nil {
					break
				}
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down replay loop")
			break Loop
		}
	}

	log.Info("replay worker shut down gracefully")
}
