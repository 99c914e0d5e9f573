package domain

import (
	"context"
	"time"
)

// ObjectStore fetches uploaded objects by bucket and key.
type ObjectStore interface {
	// GetObject returns the full content of the object.
	// Implementations return ErrObjectNotFound when the bucket or key does not exist.
	GetObject(ctx context.Context, ref ObjectRef) (*Object, error)
}

// SearchIndex writes single documents into the configured search index.
type SearchIndex interface {
	Index(ctx context.Context, record LogRecord) error
}

// DeadLetterRepository stores rows that could not be indexed and hands them
// back to the replay worker.
type DeadLetterRepository interface {
	// Add appends a dead letter to the durable stream.
	Add(ctx context.Context, dl DeadLetter) error

	// ReadBatch reads new dead letters for a consumer of a group.
	ReadBatch(ctx context.Context, group, consumer string, count int) ([]DeadLetter, error)

	// ClaimStale takes over entries that stayed pending longer than minIdle.
	ClaimStale(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]DeadLetter, error)

	// Acknowledge marks dead letters as handled.
	Acknowledge(ctx context.Context, group string, messageIDs ...string) error
}

// WALRepository defines the local failover log used while the dead-letter stream is unreachable.
type WALRepository interface {
	// Write appends a dead letter to the local WAL file.
	Write(ctx context.Context, dl DeadLetter) error

	// Replay reads dead letters from the WAL and sends them to a handler function.
	Replay(ctx context.Context, handler func(dl DeadLetter) error) error

	// Truncate removes WAL segments that have been successfully replayed.
	Truncate(ctx context.Context) error
}

// RunLedger records one row per ingested object.
type RunLedger interface {
	Record(ctx context.Context, run IngestRun) error
}

// DeadLetterInspector exposes the state of the dead-letter stream to operators.
type DeadLetterInspector interface {
	Stats(ctx context.Context) (*DeadLetterStats, error)
	Pending(ctx context.Context, group string, count int64) ([]PendingDeadLetter, error)
	Trim(ctx context.Context, maxLen int64) (int64, error)
}
