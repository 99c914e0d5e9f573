package pii

import (
	"log/slog"
	"strings"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks sensitive string fields of a record before it leaves the process.
type Redactor struct {
	fieldsToRedact map[string]struct{}
}

// NewRedactor creates a Redactor for the given document field names.
// Numeric and unknown fields cannot be masked and are dropped with a warning.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		switch field {
		case domain.FieldTimestamp, domain.FieldUserID, domain.FieldAction, domain.FieldPage:
			fieldSet[field] = struct{}{}
		default:
			logger.Warn("ignoring field that cannot be redacted", "field", field)
		}
	}
	return &Redactor{fieldsToRedact: fieldSet}
}

// Enabled reports whether any field is configured for redaction.
func (r *Redactor) Enabled() bool {
	return r != nil && len(r.fieldsToRedact) > 0
}

// Redact masks the configured fields in place and reports whether anything changed.
func (r *Redactor) Redact(record *domain.LogRecord) bool {
	if !r.Enabled() {
		return false
	}

	redacted := false
	mask := func(name string, value *string) {
		if _, ok := r.fieldsToRedact[name]; ok && *value != "" {
			*value = RedactedPlaceholder
			redacted = true
		}
	}
	mask(domain.FieldTimestamp, &record.Timestamp)
	mask(domain.FieldUserID, &record.UserID)
	mask(domain.FieldAction, &record.Action)
	mask(domain.FieldPage, &record.Page)

	return redacted
}

// RedactRow masks the configured columns of a raw CSV row and returns a copy.
func (r *Redactor) RedactRow(row map[string]string) map[string]string {
	if !r.Enabled() || row == nil {
		return row
	}
	out := make(map[string]string, len(row))
	for k, v := range row {
		if _, ok := r.fieldsToRedact[k]; ok && v != "" {
			v = RedactedPlaceholder
		}
		out[k] = v
	}
	return out
}
