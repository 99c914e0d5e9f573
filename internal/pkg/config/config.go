package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

// Credential sources understood by the search client.
const (
	CredentialNone           = "none"
	CredentialBasic          = "basic"
	CredentialSecretsManager = "secretsmanager"
	CredentialSigV4          = "sigv4"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Search index
	SearchEndpoints          []string `env:"SEARCH_ENDPOINTS,required,notEmpty" envSeparator:","`
	SearchIndexName          string   `env:"SEARCH_INDEX_NAME" envDefault:"logs-index"`
	SearchCredentialSource   string   `env:"SEARCH_CREDENTIAL_SOURCE" envDefault:"basic"`
	SearchUsername           string   `env:"SEARCH_USERNAME"`
	SearchPassword           string   `env:"SEARCH_PASSWORD"`
	SearchSecretID           string   `env:"SEARCH_SECRET_ID"`
	SearchSigV4Service       string   `env:"SEARCH_SIGV4_SERVICE" envDefault:"es"`
	SearchInsecureSkipVerify bool     `env:"SEARCH_INSECURE_SKIP_VERIFY" envDefault:"false"`

	IndexTimeout      time.Duration `env:"INDEX_TIMEOUT" envDefault:"10s"`
	IndexMaxRetries   int           `env:"INDEX_MAX_RETRIES" envDefault:"3"`
	IndexRetryWaitMin time.Duration `env:"INDEX_RETRY_WAIT_MIN" envDefault:"200ms"`
	IndexRetryWaitMax time.Duration `env:"INDEX_RETRY_WAIT_MAX" envDefault:"5s"`
	IndexRateLimit    float64       `env:"INDEX_RATE_LIMIT" envDefault:"0"` // documents per second, 0 = unlimited
	IndexRateBurst    int           `env:"INDEX_RATE_BURST" envDefault:"10"`
	RowErrorPolicy    string        `env:"ROW_ERROR_POLICY" envDefault:"skip"`

	// Object store
	AWSRegion        string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	MaxObjectSize    int64  `env:"MAX_OBJECT_SIZE_BYTES" envDefault:"104857600"` // 100MB

	RedactFields []string `env:"REDACT_FIELDS" envSeparator:","`

	// Dead letters
	RedisURL         string `env:"REDIS_URL"`
	DeadLetterStream string `env:"DEAD_LETTER_STREAM" envDefault:"csv_dead_letters"`
	WALPath          string `env:"WAL_PATH" envDefault:"/tmp/indexer-wal"`
	WALSegmentSize   int64  `env:"WAL_SEGMENT_SIZE_BYTES" envDefault:"10485760"`   // 10MB
	WALMaxDiskSize   int64  `env:"WAL_MAX_DISK_SIZE_BYTES" envDefault:"268435456"` // 256MB

	PostgresURL string `env:"POSTGRES_URL"`

	// Webhook server
	ServerAddr          string `env:"SERVER_ADDR" envDefault:":8080"`
	MetricsAddr         string `env:"METRICS_ADDR" envDefault:":9091"`
	WebhookToken        string `env:"WEBHOOK_TOKEN"`
	MaxNotificationSize int64  `env:"MAX_NOTIFICATION_SIZE_BYTES" envDefault:"1048576"` // 1MB

	// Replay worker
	ReplayInterval  time.Duration `env:"REPLAY_INTERVAL" envDefault:"5s"`
	ReplayBatchSize int           `env:"REPLAY_BATCH_SIZE" envDefault:"100"`
	ReplayMinIdle   time.Duration `env:"REPLAY_MIN_IDLE" envDefault:"1m"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks option combinations env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.SearchCredentialSource {
	case CredentialNone, CredentialSigV4:
	case CredentialBasic:
		if c.SearchUsername == "" || c.SearchPassword == "" {
			errs = append(errs, errors.New("SEARCH_USERNAME and SEARCH_PASSWORD are required for basic credentials"))
		}
	case CredentialSecretsManager:
		if c.SearchSecretID == "" {
			errs = append(errs, errors.New("SEARCH_SECRET_ID is required for secretsmanager credentials"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SEARCH_CREDENTIAL_SOURCE %q", c.SearchCredentialSource))
	}

	switch domain.RowErrorPolicy(c.RowErrorPolicy) {
	case domain.PolicySkip, domain.PolicyAbort:
	default:
		errs = append(errs, fmt.Errorf("unknown ROW_ERROR_POLICY %q", c.RowErrorPolicy))
	}

	if c.SearchIndexName == "" {
		errs = append(errs, errors.New("SEARCH_INDEX_NAME must not be empty"))
	}
	if c.IndexMaxRetries < 0 {
		errs = append(errs, errors.New("INDEX_MAX_RETRIES must not be negative"))
	}
	if c.IndexRateLimit < 0 {
		errs = append(errs, errors.New("INDEX_RATE_LIMIT must not be negative"))
	}
	if c.IndexRateLimit > 0 && c.IndexRateBurst < 1 {
		errs = append(errs, errors.New("INDEX_RATE_BURST must be at least 1 when INDEX_RATE_LIMIT is set"))
	}
	if c.MaxObjectSize <= 0 {
		errs = append(errs, errors.New("MAX_OBJECT_SIZE_BYTES must be positive"))
	}
	if c.WALSegmentSize <= 0 {
		errs = append(errs, errors.New("WAL_SEGMENT_SIZE_BYTES must be positive"))
	}
	if c.WALMaxDiskSize <= 0 {
		errs = append(errs, errors.New("WAL_MAX_DISK_SIZE_BYTES must be positive"))
	}
	if c.ReplayInterval <= 0 {
		errs = append(errs, errors.New("REPLAY_INTERVAL must be positive"))
	}
	if c.ReplayBatchSize <= 0 {
		errs = append(errs, errors.New("REPLAY_BATCH_SIZE must be positive"))
	}
	if c.ReplayMinIdle < 0 {
		errs = append(errs, errors.New("REPLAY_MIN_IDLE must not be negative"))
	}

	return errors.Join(errs...)
}
