package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/V4T54L/csv-indexer/internal/pkg/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		SearchEndpoints:        []string{"http://localhost:9200"},
		SearchIndexName:        "logs-index",
		SearchCredentialSource: config.CredentialNone,
		AWSRegion:              "us-east-1",
		MaxObjectSize:          1 << 20,
		RowErrorPolicy:         "skip",
		IndexRateLimit:         50,
		IndexRateBurst:         5,
	}
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Minimal Configuration", func(t *testing.T) {
		a, err := New(context.Background(), baseConfig(), logger, prometheus.NewRegistry())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer a.Close()

		if a.Ingest == nil || a.Store == nil || a.Search == nil {
			t.Fatal("expected core components to be wired")
		}
		if a.DeadLetters != nil || a.Ledger != nil || a.Redis != nil || a.DB != nil {
			t.Error("expected optional components to stay nil")
		}
	})

	t.Run("Dead Letters Fall Back To WAL", func(t *testing.T) {
		cfg := baseConfig()
		cfg.RedisURL = "redis://127.0.0.1:1/0"
		cfg.DeadLetterStream = "dl"
		cfg.WALPath = t.TempDir()
		cfg.WALSegmentSize = 1 << 10
		cfg.WALMaxDiskSize = 1 << 20

		a, err := New(context.Background(), cfg, logger, prometheus.NewRegistry())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer a.Close()

		if a.DeadLetters == nil || a.WAL == nil {
			t.Fatal("expected dead-letter repository with WAL")
		}
	})

	t.Run("Basic Credentials Required", func(t *testing.T) {
		cfg := baseConfig()
		cfg.SearchCredentialSource = config.CredentialBasic

		if _, err := New(context.Background(), cfg, logger, prometheus.NewRegistry()); err == nil {
			t.Fatal("expected an error for missing basic credentials")
		}
	})

	t.Run("Bad Redis URL", func(t *testing.T) {
		cfg := baseConfig()
		cfg.RedisURL = "://nope"

		if _, err := New(context.Background(), cfg, logger, prometheus.NewRegistry()); err == nil {
			t.Fatal("expected an error for an invalid redis url")
		}
	})
}
