package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/V4T54L/csv-indexer/internal/adapter/notification"
	"github.com/V4T54L/csv-indexer/internal/domain"
)

type notificationHandler interface {
	HandleNotification(ctx context.Context, refs []domain.ObjectRef) (*domain.Summary, error)
}

type handler struct {
	uc     notificationHandler
	logger *slog.Logger
}

// handle returns the summary when every object was read. Row failures only
// lower the status; an object that could not be ingested fails the invocation
// so the platform can retry it.
func (h *handler) handle(ctx context.Context, s3Event events.S3Event) (*domain.Summary, error) {
	refs, err := notification.FromS3Event(s3Event)
	if err != nil {
		h.logger.Error("rejected notification", "records", len(s3Event.Records), "error", err)
		return nil, err
	}
	if len(refs) == 0 {
		h.logger.Info("notification carries only removals, nothing to index", "records", len(s3Event.Records))
		return &domain.Summary{Status: domain.StatusSuccess}, nil
	}

	summary, err := h.uc.HandleNotification(ctx, refs)
	if err != nil {
		if summary != nil {
			h.logger.Error("notification handled with object failures",
				"objects", summary.Objects, "succeeded", summary.Succeeded, "failed", summary.Failed, "error", err)
		}
		return summary, err
	}

	h.logger.Info("notification handled",
		"status", summary.Status, "objects", summary.Objects, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}
