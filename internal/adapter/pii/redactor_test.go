package pii

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

func TestRedactor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	input := domain.LogRecord{
		Timestamp:   "2024-01-01T00:00:00Z",
		UserID:      "u1",
		Action:      "click",
		Page:        "/account/42",
		StatusCode:  200,
		AmountSpent: 9.99,
	}

	tests := []struct {
		name           string
		fields         []string
		expected       domain.LogRecord
		expectRedacted bool
	}{
		{
			name:   "Redact single field",
			fields: []string{"user_id"},
			expected: domain.LogRecord{
				Timestamp: "2024-01-01T00:00:00Z", UserID: RedactedPlaceholder, Action: "click",
				Page: "/account/42", StatusCode: 200, AmountSpent: 9.99,
			},
			expectRedacted: true,
		},
		{
			name:   "Redact multiple fields",
			fields: []string{"user_id", " page "},
			expected: domain.LogRecord{
				Timestamp: "2024-01-01T00:00:00Z", UserID: RedactedPlaceholder, Action: "click",
				Page: RedactedPlaceholder, StatusCode: 200, AmountSpent: 9.99,
			},
			expectRedacted: true,
		},
		{
			name:           "Numeric and unknown fields ignored",
			fields:         []string{"status_code", "email"},
			expected:       input,
			expectRedacted: false,
		},
		{
			name:           "No fields configured",
			fields:         nil,
			expected:       input,
			expectRedacted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redactor := NewRedactor(tt.fields, logger)
			record := input

			got := redactor.Redact(&record)

			if got != tt.expectRedacted {
				t.Errorf("Redact() = %v, want %v", got, tt.expectRedacted)
			}
			if diff := cmp.Diff(tt.expected, record); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRedactor_EmptyValueUntouched(t *testing.T) {
	redactor := NewRedactor([]string{"user_id"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	record := domain.LogRecord{UserID: ""}
	if redactor.Redact(&record) {
		t.Error("empty values should not count as redacted")
	}
	if record.UserID != "" {
		t.Errorf("expected empty user_id, got %q", record.UserID)
	}
}

func TestRedactor_NilSafe(t *testing.T) {
	var r *Redactor
	record := domain.LogRecord{UserID: "u1"}
	if r.Redact(&record) || r.Enabled() {
		t.Error("nil redactor must be a no-op")
	}
}

func TestRedactor_RedactRow(t *testing.T) {
	redactor := NewRedactor([]string{"user_id"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	row := map[string]string{"user_id": "u1", "page": "/home"}

	got := redactor.RedactRow(row)

	want := map[string]string{"user_id": RedactedPlaceholder, "page": "/home"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
	if row["user_id"] != "u1" {
		t.Error("RedactRow must not modify its input")
	}
}
