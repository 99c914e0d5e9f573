// Package csvlog decodes uploaded CSV log files into typed log records.
package csvlog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one data line of the file, keyed by header name.
type Row struct {
	Line   int
	Values map[string]string
}

// RowError describes why a single row could not become a record.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reader yields the data rows of a CSV document whose first line is the header.
type Reader struct {
	csv    *csv.Reader
	header []string
	done   bool
}

// NewReader validates the encoding and consumes the header line.
// Empty content produces a Reader that is already exhausted.
func NewReader(data []byte) (*Reader, error) {
	if !utf8.Valid(data) {
		return nil, domain.ErrInvalidEncoding
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Reader{csv: cr, done: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	present := make(map[string]struct{}, len(header))
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		present[header[i]] = struct{}{}
	}
	for _, name := range domain.RequiredFields {
		if _, ok := present[name]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, name)
		}
	}

	return &Reader{csv: cr, header: header}, nil
}

// Header returns the trimmed column names.
func (r *Reader) Header() []string {
	return r.header
}

// Next returns the next data row, or io.EOF once the document is exhausted.
// A malformed line is reported as a *RowError and the following call moves on.
func (r *Reader) Next() (Row, error) {
	if r.done {
		return Row{}, io.EOF
	}

	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		r.done = true
		return Row{}, io.EOF
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return Row{Line: parseErr.StartLine}, &RowError{Line: parseErr.StartLine, Err: parseErr.Err}
		}
		return Row{}, err
	}

	line, _ := r.csv.FieldPos(0)
	values := make(map[string]string, len(r.header))
	for i, name := range r.header {
		if i < len(record) {
			values[name] = record[i]
		}
	}
	return Row{Line: line, Values: values}, nil
}
