package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/csv-indexer/internal/app"
	"github.com/V4T54L/csv-indexer/internal/pkg/config"
	"github.com/V4T54L/csv-indexer/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	// Connections are opened once per execution environment and reused across invocations.
	a, err := app.New(context.Background(), cfg, log, prometheus.NewRegistry())
	if err != nil {
		log.Error("failed to initialize indexer", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	h := &handler{uc: a.Ingest, logger: log}
	lambda.Start(h.handle)
}
