package csvlog

import (
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

const header = "timestamp,user_id,action,page,status_code,amount_spent\n"

func readAll(t *testing.T, data string) ([]domain.LogRecord, []error) {
	t.Helper()
	r, err := NewReader([]byte(data))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}

	var records []domain.LogRecord
	var rowErrs []error
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, err)
			continue
		}
		rec, err := ParseRecord(row)
		if err != nil {
			rowErrs = append(rowErrs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, rowErrs
}

func TestReader_WellFormed(t *testing.T) {
	data := header +
		"2024-01-01T00:00:00Z,u1,click,/home,200,9.99\n" +
		"2024-01-01T00:00:01Z,u2,purchase,/checkout,500,120.5\n"

	records, rowErrs := readAll(t, data)
	if len(rowErrs) != 0 {
		t.Fatalf("unexpected row errors: %v", rowErrs)
	}

	want := []domain.LogRecord{
		{Timestamp: "2024-01-01T00:00:00Z", UserID: "u1", Action: "click", Page: "/home", StatusCode: 200, AmountSpent: 9.99},
		{Timestamp: "2024-01-01T00:00:01Z", UserID: "u2", Action: "purchase", Page: "/checkout", StatusCode: 500, AmountSpent: 120.5},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_Layouts(t *testing.T) {
	want := domain.LogRecord{Timestamp: "t", UserID: "u1", Action: "view", Page: "/", StatusCode: 404, AmountSpent: 0}

	tests := []struct {
		name string
		data string
	}{
		{"CRLF", "timestamp,user_id,action,page,status_code,amount_spent\r\nt,u1,view,/,404,0\r\n"},
		{"BOM", "\ufefftimestamp,user_id,action,page,status_code,amount_spent\nt,u1,view,/,404,0\n"},
		{"Reordered And Extra Columns", "page,extra,amount_spent,status_code,action,user_id,timestamp\n/,x,0,404,view,u1,t\n"},
		{"Padded Header", "timestamp , user_id,action,page,status_code,amount_spent\nt,u1,view,/,404,0"},
		{"Padded Numbers", header + "t,u1,view,/, 404 , 0.0 \n"},
		{"Quoted Field", header + "\"t\",u1,view,\"/\",404,0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, rowErrs := readAll(t, tt.data)
			if len(rowErrs) != 0 {
				t.Fatalf("unexpected row errors: %v", rowErrs)
			}
			if len(records) != 1 {
				t.Fatalf("expected 1 record, got %d", len(records))
			}
			if diff := cmp.Diff(want, records[0]); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReader_EmptyInputs(t *testing.T) {
	for name, data := range map[string]string{
		"Zero Bytes":  "",
		"Header Only": header,
		"Blank Lines": header + "\n\n",
	} {
		t.Run(name, func(t *testing.T) {
			records, rowErrs := readAll(t, data)
			if len(records) != 0 || len(rowErrs) != 0 {
				t.Errorf("expected no rows, got %d records and %d errors", len(records), len(rowErrs))
			}
		})
	}
}

func TestReader_LineNumbers(t *testing.T) {
	r, err := NewReader([]byte(header + "\nt,u1,view,/,200,1\n"))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	row, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if row.Line != 3 {
		t.Errorf("expected line 3, got %d", row.Line)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF to repeat, got %v", err)
	}
}

func TestNewReader_Errors(t *testing.T) {
	t.Run("Missing Header Column", func(t *testing.T) {
		_, err := NewReader([]byte("timestamp,user_id,action,page,status_code\n"))
		if !errors.Is(err, domain.ErrMissingColumn) {
			t.Fatalf("expected ErrMissingColumn, got %v", err)
		}
	})

	t.Run("Invalid UTF-8", func(t *testing.T) {
		_, err := NewReader([]byte(header + "t,u\xff,view,/,200,1\n"))
		if !errors.Is(err, domain.ErrInvalidEncoding) {
			t.Fatalf("expected ErrInvalidEncoding, got %v", err)
		}
	})
}

func TestParseRecord_Errors(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantErr    error
		wantColumn string
	}{
		{"Short Row", "t,u1,view,/,200", domain.ErrMissingColumn, domain.FieldAmountSpent},
		{"Non Numeric Status", "t,u1,view,/,OK,1.5", ErrInvalidValue, domain.FieldStatusCode},
		{"Float Status", "t,u1,view,/,200.0,1.5", ErrInvalidValue, domain.FieldStatusCode},
		{"Empty Status", "t,u1,view,/,,1.5", ErrInvalidValue, domain.FieldStatusCode},
		{"Non Numeric Amount", "t,u1,view,/,200,ten", ErrInvalidValue, domain.FieldAmountSpent},
		{"NaN Amount", "t,u1,view,/,200,NaN", ErrInvalidValue, domain.FieldAmountSpent},
		{"Infinite Amount", "t,u1,view,/,200,inf", ErrInvalidValue, domain.FieldAmountSpent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rowErrs := readAll(t, header+tt.line+"\n")
			if len(rowErrs) != 1 {
				t.Fatalf("expected 1 row error, got %d", len(rowErrs))
			}
			err := rowErrs[0]
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			var rowErr *RowError
			if !errors.As(err, &rowErr) {
				t.Fatalf("expected *RowError, got %T", err)
			}
			if rowErr.Column != tt.wantColumn {
				t.Errorf("expected column %q, got %q", tt.wantColumn, rowErr.Column)
			}
			if rowErr.Line != 2 {
				t.Errorf("expected line 2, got %d", rowErr.Line)
			}
		})
	}
}
