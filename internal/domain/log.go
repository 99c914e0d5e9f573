package domain

import (
	"errors"
	"time"
)

// Required CSV columns, in document order.
const (
	FieldTimestamp   = "timestamp"
	FieldUserID      = "user_id"
	FieldAction      = "action"
	FieldPage        = "page"
	FieldStatusCode  = "status_code"
	FieldAmountSpent = "amount_spent"
)

// RequiredFields lists every column a CSV header must carry.
var RequiredFields = []string{
	FieldTimestamp,
	FieldUserID,
	FieldAction,
	FieldPage,
	FieldStatusCode,
	FieldAmountSpent,
}

var (
	ErrEmptyNotification = errors.New("notification carries no object records")
	ErrMissingColumn     = errors.New("required column missing")
	ErrInvalidEncoding   = errors.New("object content is not valid UTF-8")
	ErrObjectTooLarge    = errors.New("object exceeds maximum size")
	ErrObjectNotFound    = errors.New("object not found")
	ErrIndexRejected     = errors.New("search index rejected document")
	ErrRowAborted        = errors.New("object aborted after row failure")

	// ErrDocumentInvalid marks rejections that resending the same document cannot fix.
	ErrDocumentInvalid = errors.New("document will never be accepted")
)

// LogRecord is the document written to the search index for one CSV row.
// It is built right before indexing and dropped right after.
type LogRecord struct {
	Timestamp   string  `json:"timestamp"`
	UserID      string  `json:"user_id"`
	Action      string  `json:"action"`
	Page        string  `json:"page"`
	StatusCode  int     `json:"status_code"`
	AmountSpent float64 `json:"amount_spent"`
}

// ObjectRef identifies one uploaded object named by a storage notification.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size,omitempty"`
	ETag   string `json:"etag,omitempty"`
}

// Object is the full content of a fetched object.
type Object struct {
	Ref             ObjectRef
	Body            []byte
	ContentType     string
	ContentEncoding string
}

// FailureReason classifies why a row did not reach the index.
type FailureReason string

const (
	ReasonParse FailureReason = "parse"
	ReasonIndex FailureReason = "index"
)

// RowErrorPolicy decides what happens to the rest of an object once a row fails.
type RowErrorPolicy string

const (
	PolicySkip  RowErrorPolicy = "skip"
	PolicyAbort RowErrorPolicy = "abort"
)

// DeadLetter is a row that could not be indexed.
// Record is only set for index failures, which makes them replayable.
type DeadLetter struct {
	ID              string            `json:"id"`
	RunID           string            `json:"run_id"`
	Bucket          string            `json:"bucket"`
	Key             string            `json:"key"`
	Line            int               `json:"line"`
	Reason          FailureReason     `json:"reason"`
	Error           string            `json:"error"`
	Row             map[string]string `json:"row,omitempty"`
	Record          *LogRecord        `json:"record,omitempty"`
	FailedAt        time.Time         `json:"failed_at"`
	StreamMessageID string            `json:"-"`
}

// Replayable reports whether the dead letter holds a parsed record that can be re-sent.
func (d DeadLetter) Replayable() bool {
	return d.Reason == ReasonIndex && d.Record != nil
}
