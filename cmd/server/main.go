package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/csv-indexer/internal/adapter/api"
	"github.com/V4T54L/csv-indexer/internal/adapter/api/handler"
	redisrepo "github.com/V4T54L/csv-indexer/internal/adapter/repository/redis"
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
	if cfg.WebhookToken == "" {
		slog.Error("WEBHOOK_TOKEN is required by the webhook server")
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, logger, reg)
	if err != nil {
		logger.Error("failed to initialize indexer", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// --- Start Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		logger.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	var adminUseCase *usecase.AdminStreamUseCase
	if a.DeadLetters != nil {
		// Start Redis health check and WAL replay loop
		go a.DeadLetters.StartHealthCheck(ctx, 5*time.Second)
		adminUseCase = usecase.NewAdminStreamUseCase(redisrepo.NewAdminRepository(a.Redis, logger, cfg.DeadLetterStream), app.ReplayGroup)
	}

	sseBroker := handler.NewSSEBroker(ctx, logger)

	// --- Initialize Webhook Server ---
	router := api.NewRouter(cfg, logger, a.Ingest, adminUseCase, sseBroker)
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting webhook server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("webhook server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("webhook server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
