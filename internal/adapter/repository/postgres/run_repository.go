package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

const runsTableName = "ingest_runs"

const createRunsTable = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	run_id      UUID PRIMARY KEY,
	bucket      TEXT NOT NULL,
	object_key  TEXT NOT NULL,
	etag        TEXT NOT NULL DEFAULT '',
	rows_total  INTEGER NOT NULL,
	rows_ok     INTEGER NOT NULL,
	rows_failed INTEGER NOT NULL,
	bytes       BIGINT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS ingest_runs_object_idx ON ingest_runs (bucket, object_key);
`

// RunRepository implements domain.RunLedger on PostgreSQL.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new PostgreSQL run ledger.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger.With("component", "postgres_runs")}
}

// EnsureSchema creates the ledger table when it does not exist yet.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRunsTable); err != nil {
		return fmt.Errorf("failed to create %s table: %w", runsTableName, err)
	}
	return nil
}

// Record inserts one ledger row. A run that is already recorded is left unchanged.
func (r *RunRepository) Record(ctx context.Context, run domain.IngestRun) error {
	query := `
		INSERT INTO ` + runsTableName + ` (run_id, bucket, object_key, etag, rows_total, rows_ok, rows_failed, bytes, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		run.RunID, run.Bucket, run.Key, run.ETag,
		run.Rows, run.Indexed, run.Failed, run.Bytes,
		run.StartedAt, run.FinishedAt, run.Error,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			r.logger.Error("postgres rejected ingest run", "run_id", run.RunID, "code", pqErr.Code, "detail", pqErr.Detail)
		}
		return fmt.Errorf("failed to record ingest run %s: %w", run.RunID, err)
	}
	return nil
}
