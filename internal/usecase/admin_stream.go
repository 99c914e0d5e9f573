package usecase

import (
	"context"
	"errors"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

const maxPendingListing = 1000

var ErrInvalidArgument = errors.New("invalid argument")

// AdminStreamUseCase lets operators inspect and trim the dead-letter stream.
type AdminStreamUseCase struct {
	repo  domain.DeadLetterInspector
	group string
}

// NewAdminStreamUseCase creates a new AdminStreamUseCase. group is the replay
// consumer group used when a request names none.
func NewAdminStreamUseCase(repo domain.DeadLetterInspector, group string) *AdminStreamUseCase {
	return &AdminStreamUseCase{repo: repo, group: group}
}

func (uc *AdminStreamUseCase) Stats(ctx context.Context) (*domain.DeadLetterStats, error) {
	return uc.repo.Stats(ctx)
}

func (uc *AdminStreamUseCase) Pending(ctx context.Context, group string, count int64) ([]domain.PendingDeadLetter, error) {
	if group == "" {
		group = uc.group
	}
	if count <= 0 || count > maxPendingListing {
		count = maxPendingListing
	}
	return uc.repo.Pending(ctx, group, count)
}

func (uc *AdminStreamUseCase) Trim(ctx context.Context, maxLen int64) (int64, error) {
	if maxLen < 0 {
		return 0, ErrInvalidArgument
	}
	return uc.repo.Trim(ctx, maxLen)
}
