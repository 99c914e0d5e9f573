// Package app wires the indexer components from configuration. The Lambda
// handler, the webhook server and the replay worker share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/V4T54L/csv-indexer/internal/adapter/metrics"
	"github.com/V4T54L/csv-indexer/internal/adapter/objectstore"
	"github.com/V4T54L/csv-indexer/internal/adapter/pii"
	"github.com/V4T54L/csv-indexer/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/csv-indexer/internal/adapter/repository/redis"
	"github.com/V4T54L/csv-indexer/internal/adapter/repository/wal"
	"github.com/V4T54L/csv-indexer/internal/adapter/search"
	"github.com/V4T54L/csv-indexer/internal/domain"
	"github.com/V4T54L/csv-indexer/internal/pkg/config"
	"github.com/V4T54L/csv-indexer/internal/usecase"
)

// ReplayGroup is the consumer group the replay worker reads dead letters with.
const ReplayGroup = "csv-replayers"

// App holds the wired components. Optional parts are nil when not configured.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.IndexerMetrics

	Session     *session.Session
	Store       *objectstore.S3Store
	Search      *search.IndexRepository
	Redis       *redis.Client
	WAL         *wal.WALRepository
	DeadLetters *redisrepo.DeadLetterRepository
	DB          *sql.DB
	Ledger      *postgres.RunRepository

	Ingest *usecase.IngestObjectUseCase
}

// New builds every component the configuration asks for. Metrics are
// registered on reg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewIndexerMetrics(reg),
	}

	sess, err := objectstore.NewSession(cfg.AWSRegion, cfg.S3Endpoint, cfg.S3ForcePathStyle)
	if err != nil {
		return nil, err
	}
	a.Session = sess
	a.Store = objectstore.NewS3Store(s3.New(sess), cfg.MaxObjectSize, logger)

	auth, err := a.credentialSource().Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve search credentials: %w", err)
	}
	a.Search, err = search.NewIndexRepository(search.Options{
		Endpoints:          cfg.SearchEndpoints,
		Index:              cfg.SearchIndexName,
		Auth:               auth,
		InsecureSkipVerify: cfg.SearchInsecureSkipVerify,
		Timeout:            cfg.IndexTimeout,
		MaxRetries:         cfg.IndexMaxRetries,
		RetryWaitMin:       cfg.IndexRetryWaitMin,
		RetryWaitMax:       cfg.IndexRetryWaitMax,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		if err := a.openDeadLetters(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.PostgresURL != "" {
		if err := a.openLedger(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	opts := []usecase.IngestOption{
		usecase.WithMetrics(a.Metrics),
		usecase.WithRowErrorPolicy(domain.RowErrorPolicy(cfg.RowErrorPolicy)),
		usecase.WithRedactor(pii.NewRedactor(cfg.RedactFields, logger)),
	}
	if cfg.IndexRateLimit > 0 {
		opts = append(opts, usecase.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.IndexRateLimit), cfg.IndexRateBurst)))
	}
	if a.DeadLetters != nil {
		opts = append(opts, usecase.WithDeadLetters(a.DeadLetters))
	}
	if a.Ledger != nil {
		opts = append(opts, usecase.WithLedger(a.Ledger))
	}
	a.Ingest = usecase.NewIngestObjectUseCase(a.Store, a.Search, logger, opts...)

	return a, nil
}

func (a *App) credentialSource() search.CredentialSource {
	cfg := a.Config
	src := search.CredentialSource{
		Kind:     cfg.SearchCredentialSource,
		Username: cfg.SearchUsername,
		Password: cfg.SearchPassword,
		SecretID: cfg.SearchSecretID,
		Region:   cfg.AWSRegion,
		Service:  cfg.SearchSigV4Service,
	}
	switch src.Kind {
	case config.CredentialSecretsManager:
		// The S3 endpoint override must not leak into Secrets Manager.
		src.SecretsManager = secretsmanager.New(a.Session, aws.NewConfig().WithEndpoint(""))
	case config.CredentialSigV4:
		src.AWSCredentials = a.Session.Config.Credentials
	}
	return src
}

func (a *App) openDeadLetters(ctx context.Context) error {
	cfg := a.Config
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	a.Redis = redis.NewClient(redisOpts)

	a.WAL, err = wal.NewWALRepository(cfg.WALPath, cfg.WALSegmentSize, cfg.WALMaxDiskSize, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize WAL repository: %w", err)
	}

	a.DeadLetters = redisrepo.NewDeadLetterRepository(ctx, a.Redis, a.Logger, cfg.DeadLetterStream, ReplayGroup, a.WAL, a.Metrics)
	return nil
}

func (a *App) openLedger(ctx context.Context) error {
	db, err := sql.Open("postgres", a.Config.PostgresURL)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	a.DB = db
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	a.Ledger = postgres.NewRunRepository(db, a.Logger)
	return a.Ledger.EnsureSchema(ctx)
}

// Close releases connections and files opened by New.
func (a *App) Close() error {
	var errs []error
	if a.WAL != nil {
		errs = append(errs, a.WAL.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
