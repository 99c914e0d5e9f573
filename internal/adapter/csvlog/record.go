package csvlog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

// ErrInvalidValue is returned when a numeric column cannot be parsed.
var ErrInvalidValue = errors.New("invalid value")

// ParseRecord coerces a row into a LogRecord.
// Only the two numeric columns are validated; string columns pass through untouched.
func ParseRecord(row Row) (domain.LogRecord, error) {
	var rec domain.LogRecord

	fields := []struct {
		name string
		dst  *string
	}{
		{domain.FieldTimestamp, &rec.Timestamp},
		{domain.FieldUserID, &rec.UserID},
		{domain.FieldAction, &rec.Action},
		{domain.FieldPage, &rec.Page},
	}
	for _, f := range fields {
		v, err := lookup(row, f.name)
		if err != nil {
			return domain.LogRecord{}, err
		}
		*f.dst = v
	}

	raw, err := lookup(row, domain.FieldStatusCode)
	if err != nil {
		return domain.LogRecord{}, err
	}
	rec.StatusCode, err = strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return domain.LogRecord{}, &RowError{
			Line:   row.Line,
			Column: domain.FieldStatusCode,
			Err:    fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, raw),
		}
	}

	raw, err = lookup(row, domain.FieldAmountSpent)
	if err != nil {
		return domain.LogRecord{}, err
	}
	rec.AmountSpent, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(rec.AmountSpent) || math.IsInf(rec.AmountSpent, 0) {
		return domain.LogRecord{}, &RowError{
			Line:   row.Line,
			Column: domain.FieldAmountSpent,
			Err:    fmt.Errorf("%w: %q is not a finite number", ErrInvalidValue, raw),
		}
	}

	return rec, nil
}

func lookup(row Row, name string) (string, error) {
	v, ok := row.Values[name]
	if !ok {
		return "", &RowError{Line: row.Line, Column: name, Err: domain.ErrMissingColumn}
	}
	return v, nil
}
