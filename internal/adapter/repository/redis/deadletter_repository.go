package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/csv-indexer/internal/adapter/metrics"
	"github.com/V4T54L/csv-indexer/internal/adapter/repository/wal"
	"github.com/V4T54L/csv-indexer/internal/domain"
)

const payloadField = "payload"

// DeadLetterRepository implements domain.DeadLetterRepository on a Redis Stream,
// spilling to a local WAL while Redis is unreachable.
type DeadLetterRepository struct {
	client      *redis.Client
	logger      *slog.Logger
	stream      string
	group       string
	wal         *wal.WALRepository
	metrics     *metrics.IndexerMetrics
	isAvailable atomic.Bool
}

// NewDeadLetterRepository creates a Redis-backed dead-letter repository.
// The WAL and metrics are optional; pass nil to disable them. When group is not
// empty the consumer group is created up front.
func NewDeadLetterRepository(ctx context.Context, client *redis.Client, logger *slog.Logger, stream, group string, w *wal.WALRepository, m *metrics.IndexerMetrics) *DeadLetterRepository {
	repo := &DeadLetterRepository{
		client:  client,
		logger:  logger.With("component", "redis_deadletters"),
		stream:  stream,
		group:   group,
		wal:     w,
		metrics: m,
	}
	repo.isAvailable.Store(true)

	if err := client.Ping(ctx).Err(); err != nil {
		repo.markUnavailable(err)
		return repo
	}
	repo.setupConsumerGroup(ctx)
	if w != nil && !w.Empty() {
		if err := repo.ReplayWAL(ctx); err != nil {
			repo.logger.Error("Failed to replay WAL on startup", "error", err)
		}
	}
	return repo
}

// StartHealthCheck monitors Redis connectivity and replays the WAL once it recovers.
func (r *DeadLetterRepository) StartHealthCheck(ctx context.Context, interval time.Duration) {
	if r.wal == nil {
		r.logger.Info("WAL is not configured, skipping health check")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping Redis health check")
			return
		case <-ticker.C:
			if err := r.client.Ping(ctx).Err(); err != nil {
				r.markUnavailable(err)
				continue
			}
			if r.isAvailable.CompareAndSwap(false, true) {
				r.logger.Info("Redis connection recovered")
				r.setWALActive(false)
				r.setupConsumerGroup(ctx)
			}
			if !r.wal.Empty() {
				if err := r.ReplayWAL(ctx); err != nil {
					r.logger.Error("Failed to replay WAL after Redis recovery", "error", err)
				}
			}
		}
	}
}

// ReplayWAL moves spilled dead letters into the stream and truncates the WAL on success.
func (r *DeadLetterRepository) ReplayWAL(ctx context.Context) error {
	if r.wal == nil {
		return nil
	}
	if err := r.wal.Replay(ctx, func(dl domain.DeadLetter) error {
		return r.addToStream(ctx, dl)
	}); err != nil {
		return fmt.Errorf("WAL replay failed: %w", err)
	}
	if err := r.wal.Truncate(ctx); err != nil {
		return fmt.Errorf("failed to truncate WAL after successful replay: %w", err)
	}
	r.logger.Info("WAL replay to Redis completed successfully")
	return nil
}

func (r *DeadLetterRepository) setupConsumerGroup(ctx context.Context) {
	if r.group == "" {
		return
	}
	err := r.client.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err != nil && !isRedisBusyGroupError(err) {
		r.logger.Error("Failed to setup consumer group", "group", r.group, "error", err)
	}
}

// Add appends a dead letter to the stream, falling back to the WAL if Redis is unavailable.
func (r *DeadLetterRepository) Add(ctx context.Context, dl domain.DeadLetter) error {
	if !r.isAvailable.Load() {
		return r.spill(ctx, dl)
	}

	err := r.addToStream(ctx, dl)
	if err != nil && isNetworkError(err) {
		r.markUnavailable(err)
		return r.spill(ctx, dl)
	}
	if err != nil {
		r.count("dropped")
		return err
	}
	r.count("redis")
	return nil
}

func (r *DeadLetterRepository) spill(ctx context.Context, dl domain.DeadLetter) error {
	if r.wal == nil {
		r.count("dropped")
		return errors.New("redis is unavailable and WAL is not configured")
	}
	if err := r.wal.Write(ctx, dl); err != nil {
		r.count("dropped")
		return err
	}
	r.logger.Warn("Redis is unavailable, dead letter written to WAL", "dead_letter_id", dl.ID)
	r.count("wal")
	return nil
}

func (r *DeadLetterRepository) addToStream(ctx context.Context, dl domain.DeadLetter) error {
	payload, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			payloadField: payload,
			"reason":     string(dl.Reason),
			"object":     dl.Bucket + "/" + dl.Key,
		},
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}

// ReadBatch reads new dead letters for a consumer of a group.
func (r *DeadLetterRepository) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.DeadLetter, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.stream, ">"},
		Count:    int64(count),
		Block:    2 * time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}

	if len(streams) == 0 {
		return nil, nil
	}
	return r.decode(streams[0].Messages), nil
}

// ClaimStale takes over dead letters another consumer left pending for longer than minIdle.
func (r *DeadLetterRepository) ClaimStale(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]domain.DeadLetter, error) {
	messages, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   r.stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XAUTOCLAIM from redis: %w", err)
	}
	return r.decode(messages), nil
}

// Acknowledge marks dead letters as handled in the consumer group.
func (r *DeadLetterRepository) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, r.stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

// decode turns stream messages into dead letters. Malformed messages are kept
// as empty, non-replayable entries so the consumer can still acknowledge them.
func (r *DeadLetterRepository) decode(messages []redis.XMessage) []domain.DeadLetter {
	out := make([]domain.DeadLetter, 0, len(messages))
	for _, msg := range messages {
		var dl domain.DeadLetter
		if payload, ok := msg.Values[payloadField].(string); !ok {
			r.logger.Warn("Invalid message format in stream", "message_id", msg.ID)
		} else if err := json.Unmarshal([]byte(payload), &dl); err != nil {
			r.logger.Warn("Failed to unmarshal dead letter from stream", "message_id", msg.ID, "error", err)
			dl = domain.DeadLetter{}
		}
		dl.StreamMessageID = msg.ID
		out = append(out, dl)
	}
	return out
}

func (r *DeadLetterRepository) markUnavailable(err error) {
	if r.isAvailable.CompareAndSwap(true, false) {
		r.logger.Error("Redis connection lost", "error", err)
		r.setWALActive(true)
	}
}

func (r *DeadLetterRepository) setWALActive(active bool) {
	if r.metrics == nil {
		return
	}
	if active && r.wal != nil {
		r.metrics.WALActive.Set(1)
	} else {
		r.metrics.WALActive.Set(0)
	}
}

func (r *DeadLetterRepository) count(sink string) {
	if r.metrics != nil {
		r.metrics.DeadLettersTotal.WithLabelValues(sink).Inc()
	}
}

func isRedisBusyGroupError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}
