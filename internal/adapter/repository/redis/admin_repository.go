package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

// AdminRepository implements domain.DeadLetterInspector for Redis.
type AdminRepository struct {
	client *redis.Client
	logger *slog.Logger
	stream string
}

// NewAdminRepository creates a new Redis admin repository for stream.
func NewAdminRepository(client *redis.Client, logger *slog.Logger, stream string) *AdminRepository {
	return &AdminRepository{
		client: client,
		logger: logger,
		stream: stream,
	}
}

// Stats reports the stream length and every consumer group reading it.
// A stream that does not exist yet has length zero and no groups.
func (r *AdminRepository) Stats(ctx context.Context) (*domain.DeadLetterStats, error) {
	stats := &domain.DeadLetterStats{Stream: r.stream, Groups: []domain.DeadLetterGroup{}}

	length, err := r.client.XLen(ctx, r.stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get length of stream %s: %w", r.stream, err)
	}
	stats.Length = length
	if length == 0 {
		if exists, err := r.client.Exists(ctx, r.stream).Result(); err == nil && exists == 0 {
			return stats, nil
		}
	}

	groups, err := r.client.XInfoGroups(ctx, r.stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get group info for stream %s: %w", r.stream, err)
	}
	for _, g := range groups {
		stats.Groups = append(stats.Groups, domain.DeadLetterGroup{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		})
	}
	return stats, nil
}

// Pending lists up to count unacknowledged entries of group, oldest first.
func (r *AdminRepository) Pending(ctx context.Context, group string, count int64) ([]domain.PendingDeadLetter, error) {
	if group == "" {
		return nil, errors.New("group is required")
	}
	messages, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending entries for group %s: %w", group, err)
	}

	result := make([]domain.PendingDeadLetter, len(messages))
	for i, m := range messages {
		result[i] = domain.PendingDeadLetter{
			ID:         m.ID,
			Consumer:   m.Consumer,
			Idle:       m.Idle,
			RetryCount: m.RetryCount,
		}
	}
	return result, nil
}

// Trim caps the stream at maxLen entries and returns how many were removed.
func (r *AdminRepository) Trim(ctx context.Context, maxLen int64) (int64, error) {
	n, err := r.client.XTrimMaxLen(ctx, r.stream, maxLen).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to trim stream %s: %w", r.stream, err)
	}
	r.logger.Info("trimmed dead-letter stream", "stream", r.stream, "max_len", maxLen, "removed", n)
	return n, nil
}
