package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

const (
	defaultReplayBatchSize  = 100
	defaultReplayRetryCount = 3
	defaultReplayBackoff    = 1 * time.Second
)

// ReplayDeadLettersUseCase re-sends dead-lettered records to the search index.
type ReplayDeadLettersUseCase struct {
	deadLetters  domain.DeadLetterRepository
	index        domain.SearchIndex
	logger       *slog.Logger
	group        string
	consumer     string
	batchSize    int
	minIdle      time.Duration
	retryCount   int
	retryBackoff time.Duration
}

// NewReplayDeadLettersUseCase creates a new use case for replaying dead letters.
func NewReplayDeadLettersUseCase(deadLetters domain.DeadLetterRepository, index domain.SearchIndex, logger *slog.Logger, group, consumer string, batchSize int, minIdle time.Duration, retryCount int, retryBackoff time.Duration) *ReplayDeadLettersUseCase {
	if batchSize <= 0 {
		batchSize = defaultReplayBatchSize
	}
	if retryCount <= 0 {
		retryCount = defaultReplayRetryCount
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultReplayBackoff
	}
	return &ReplayDeadLettersUseCase{
		deadLetters:  deadLetters,
		index:        index,
		logger:       logger.With("component", "replay"),
		group:        group,
		consumer:     consumer,
		batchSize:    batchSize,
		minIdle:      minIdle,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// ProcessBatch takes over stale pending entries first, tops the batch up with
// new ones, and re-indexes each replayable record. Entries are acknowledged once
// indexed or once the index rejects them as permanently invalid. Entries that
// still fail stay pending and are claimed again after minIdle.
// It returns the number of acknowledged entries.
func (uc *ReplayDeadLettersUseCase) ProcessBatch(ctx context.Context) (int, error) {
	entries, err := uc.deadLetters.ClaimStale(ctx, uc.group, uc.consumer, uc.minIdle, uc.batchSize)
	if err != nil {
		uc.logger.Error("failed to claim stale dead letters", "error", err)
		return 0, err
	}
	if len(entries) < uc.batchSize {
		fresh, err := uc.deadLetters.ReadBatch(ctx, uc.group, uc.consumer, uc.batchSize-len(entries))
		if err != nil {
			uc.logger.Error("failed to read dead-letter batch", "error", err)
			if len(entries) == 0 {
				return 0, err
			}
		}
		entries = append(entries, fresh...)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	uc.logger.Debug("read batch of dead letters", "count", len(entries))

	var acked []string
	for _, dl := range entries {
		if !dl.Replayable() {
			uc.logger.Warn("dead letter cannot be replayed, acknowledging",
				"id", dl.ID, "bucket", dl.Bucket, "key", dl.Key, "line", dl.Line, "reason", dl.Reason)
			acked = append(acked, dl.StreamMessageID)
			continue
		}

		if err := uc.indexWithRetry(ctx, *dl.Record); err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, domain.ErrDocumentInvalid) {
				uc.logger.Error("search index will never accept dead letter, acknowledging",
					"id", dl.ID, "bucket", dl.Bucket, "key", dl.Key, "line", dl.Line, "error", err)
				acked = append(acked, dl.StreamMessageID)
				continue
			}
			uc.logger.Error("replay failed, leaving entry pending",
				"id", dl.ID, "bucket", dl.Bucket, "key", dl.Key, "line", dl.Line, "error", err)
			continue
		}
		acked = append(acked, dl.StreamMessageID)
	}

	if len(acked) == 0 {
		return 0, ctx.Err()
	}
	// Acknowledge with a context that survives shutdown so indexed entries are not replayed twice.
	if err := uc.deadLetters.Acknowledge(context.WithoutCancel(ctx), uc.group, acked...); err != nil {
		uc.logger.Error("failed to acknowledge dead letters", "error", err)
		return 0, err
	}

	uc.logger.Info("replayed dead-letter batch", "read", len(entries), "acknowledged", len(acked))
	return len(acked), nil
}

func (uc *ReplayDeadLettersUseCase) indexWithRetry(ctx context.Context, record domain.LogRecord) error {
	var lastErr error
	for i := 0; i < uc.retryCount; i++ {
		err := uc.index.Index(ctx, record)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrDocumentInvalid) {
			return err
		}
		lastErr = err
		uc.logger.Warn("failed to re-index record, retrying...", "attempt", i+1, "error", err)
		if i == uc.retryCount-1 {
			break
		}
		select {
		case <-time.After(uc.retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
