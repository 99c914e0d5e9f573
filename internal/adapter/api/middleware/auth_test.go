package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := BearerAuth("s3cret", logger)(next)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"Valid Token", "Bearer s3cret", http.StatusNoContent},
		{"Missing Header", "", http.StatusUnauthorized},
		{"Wrong Scheme", "Basic s3cret", http.StatusUnauthorized},
		{"Wrong Token", "Bearer nope", http.StatusUnauthorized},
		{"Empty Token", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/notifications", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("got status %d want %d", rr.Code, tt.expectedStatus)
			}
		})
	}
}
