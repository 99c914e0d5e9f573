package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/V4T54L/csv-indexer/internal/domain"
	"github.com/V4T54L/csv-indexer/internal/domain/mocks"
	"github.com/V4T54L/csv-indexer/internal/pkg/config"
	"github.com/V4T54L/csv-indexer/internal/usecase"
)

type stubNotificationUseCase struct{}

func (stubNotificationUseCase) HandleNotification(ctx context.Context, refs []domain.ObjectRef) (*domain.Summary, error) {
	return &domain.Summary{Status: domain.StatusSuccess, Objects: len(refs)}, nil
}

func TestNewRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{WebhookToken: "tok", MaxNotificationSize: 1 << 20}
	admin := usecase.NewAdminStreamUseCase(&mocks.MockDeadLetterInspector{StatsResult: &domain.DeadLetterStats{}}, "replayers")
	router := NewRouter(cfg, logger, stubNotificationUseCase{}, admin, nil)

	event := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"logs"},"object":{"key":"a.csv"}}}]}`

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		token          string
		expectedStatus int
	}{
		{"Health Is Public", http.MethodGet, "/health", "", "", http.StatusOK},
		{"Notification Requires Token", http.MethodPost, "/notifications", event, "", http.StatusUnauthorized},
		{"Notification Accepted", http.MethodPost, "/notifications", event, "tok", http.StatusOK},
		{"Wrong Method", http.MethodGet, "/notifications", "", "tok", http.StatusMethodNotAllowed},
		{"Admin Requires Token", http.MethodGet, "/admin/deadletters", "", "", http.StatusUnauthorized},
		{"Admin Stats", http.MethodGet, "/admin/deadletters", "", "tok", http.StatusOK},
		{"Events Disabled Without Broker", http.MethodGet, "/events", "", "tok", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("%s %s: got status %d want %d", tt.method, tt.path, rr.Code, tt.expectedStatus)
			}
		})
	}
}
