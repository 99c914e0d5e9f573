package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

// MockNotificationUseCase is a mock implementation of NotificationUseCase.
type MockNotificationUseCase struct {
	HandleFunc func(ctx context.Context, refs []domain.ObjectRef) (*domain.Summary, error)
	Refs       []domain.ObjectRef
}

func (m *MockNotificationUseCase) HandleNotification(ctx context.Context, refs []domain.ObjectRef) (*domain.Summary, error) {
	m.Refs = refs
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, refs)
	}
	return &domain.Summary{Status: domain.StatusSuccess, Objects: len(refs)}, nil
}

type recordingReporter struct {
	indexed, failed int
}

func (r *recordingReporter) ReportRows(indexed, failed int) {
	r.indexed += indexed
	r.failed += failed
}

const validEvent = `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"logs"},"object":{"key":"a+b.csv"}}}]}`

func TestNotificationHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		maxSize        int64
		summary        *domain.Summary
		useCaseErr     error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Success",
			body:           validEvent,
			summary:        &domain.Summary{Status: domain.StatusSuccess, Objects: 1, Succeeded: 3},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Partial Failure",
			body:           validEvent,
			summary:        &domain.Summary{Status: domain.StatusPartialFailure, Objects: 1, Succeeded: 2, Failed: 1},
			expectedStatus: http.StatusMultiStatus,
		},
		{
			name:           "Object Failure",
			body:           validEvent,
			summary:        &domain.Summary{Status: domain.StatusPartialFailure, Objects: 1},
			useCaseErr:     domain.ErrObjectNotFound,
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "Use Case Error Without Summary",
			body:           validEvent,
			useCaseErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "Internal Server Error\n",
		},
		{
			name:           "Bad JSON",
			body:           `{"Records": [`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Bad Request: Failed to decode notification\n",
		},
		{
			name:           "Empty Notification",
			body:           `{"Records": []}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Bad Request: " + domain.ErrEmptyNotification.Error() + "\n",
		},
		{
			name:           "Payload Too Large",
			body:           validEvent,
			maxSize:        16,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedBody:   "Payload too large\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &MockNotificationUseCase{
				HandleFunc: func(ctx context.Context, refs []domain.ObjectRef) (*domain.Summary, error) {
					return tt.summary, tt.useCaseErr
				},
			}
			maxSize := tt.maxSize
			if maxSize == 0 {
				maxSize = 1024
			}
			reporter := &recordingReporter{}
			handler := NewNotificationHandler(uc, logger, maxSize, reporter)

			req := httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", status, tt.expectedStatus)
			}
			if tt.expectedBody != "" {
				if body := rr.Body.String(); body != tt.expectedBody {
					t.Errorf("handler returned unexpected body: got %q want %q", body, tt.expectedBody)
				}
				return
			}

			var got domain.Summary
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode summary: %v", err)
			}
			if got.Status != tt.summary.Status || got.Succeeded != tt.summary.Succeeded {
				t.Errorf("unexpected summary: %+v", got)
			}
			if reporter.indexed != tt.summary.Succeeded || reporter.failed != tt.summary.Failed {
				t.Errorf("unexpected progress report: %+v", reporter)
			}
		})
	}
}

func TestNotificationHandler_DecodesKeys(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := &MockNotificationUseCase{}
	handler := NewNotificationHandler(uc, logger, 1024, nil)

	req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(validEvent))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(uc.Refs) != 1 || uc.Refs[0].Bucket != "logs" || uc.Refs[0].Key != "a b.csv" {
		t.Errorf("unexpected refs: %+v", uc.Refs)
	}
}

func TestNotificationHandler_RemovalOnly(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := &MockNotificationUseCase{}
	reporter := &recordingReporter{}
	handler := NewNotificationHandler(uc, logger, 1024, reporter)

	body := `{"Records":[{"eventName":"ObjectRemoved:Delete","s3":{"bucket":{"name":"logs"},"object":{"key":"a.csv"}}}]}`
	req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got domain.Summary
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if got.Status != domain.StatusSuccess || got.Objects != 0 {
		t.Errorf("expected an empty success summary, got %+v", got)
	}
	if uc.Refs != nil {
		t.Errorf("expected the use case not to run, got refs %+v", uc.Refs)
	}
	if reporter.indexed != 0 || reporter.failed != 0 {
		t.Errorf("expected no progress report, got %+v", reporter)
	}
}
