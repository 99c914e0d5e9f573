package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/V4T54L/csv-indexer/internal/adapter/notification"
	"github.com/V4T54L/csv-indexer/internal/domain"
)

// NotificationUseCase ingests every object named by a notification.
type NotificationUseCase interface {
	HandleNotification(ctx context.Context, refs []domain.ObjectRef) (*domain.Summary, error)
}

// ProgressReporter receives the row outcome of every handled notification.
type ProgressReporter interface {
	ReportRows(indexed, failed int)
}

// NotificationHandler receives S3-format bucket notifications over HTTP.
type NotificationHandler struct {
	useCase  NotificationUseCase
	logger   *slog.Logger
	maxSize  int64
	progress ProgressReporter
}

// NewNotificationHandler creates a new NotificationHandler. progress may be nil.
func NewNotificationHandler(uc NotificationUseCase, logger *slog.Logger, maxSize int64, progress ProgressReporter) *NotificationHandler {
	return &NotificationHandler{
		useCase:  uc,
		logger:   logger,
		maxSize:  maxSize,
		progress: progress,
	}
}

// ServeHTTP decodes the notification and ingests the objects synchronously.
// The response carries the summary: 200 when every row was indexed, 207 when
// some rows failed and 502 when an object could not be ingested at all.
func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize)

	var evt events.S3Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Bad Request: Failed to decode notification", http.StatusBadRequest)
		return
	}

	refs, err := notification.FromS3Event(evt)
	if err != nil {
		h.logger.Warn("rejected notification", "error", err)
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(refs) == 0 {
		h.logger.Info("notification carries only removals, nothing to index", "records", len(evt.Records))
		respondWithJSON(w, h.logger, http.StatusOK, &domain.Summary{Status: domain.StatusSuccess})
		return
	}

	summary, err := h.useCase.HandleNotification(r.Context(), refs)
	if summary == nil {
		h.logger.Error("failed to handle notification", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if h.progress != nil {
		h.progress.ReportRows(summary.Succeeded, summary.Failed)
	}

	code := http.StatusOK
	switch {
	case err != nil:
		h.logger.Error("notification handled with object failures", "objects", summary.Objects, "error", err)
		code = http.StatusBadGateway
	case summary.Status == domain.StatusPartialFailure:
		code = http.StatusMultiStatus
	}
	respondWithJSON(w, h.logger, code, summary)
}

func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
