package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/V4T54L/csv-indexer/internal/adapter/csvlog"
	"github.com/V4T54L/csv-indexer/internal/adapter/metrics"
	"github.com/V4T54L/csv-indexer/internal/adapter/pii"
	"github.com/V4T54L/csv-indexer/internal/domain"
)

const tracerName = "github.com/V4T54L/csv-indexer/internal/usecase"

// IngestOption configures optional collaborators of IngestObjectUseCase.
type IngestOption func(*IngestObjectUseCase)

// WithDeadLetters keeps failed rows in repo.
func WithDeadLetters(repo domain.DeadLetterRepository) IngestOption {
	return func(uc *IngestObjectUseCase) { uc.deadLetters = repo }
}

// WithLedger records every object run in ledger.
func WithLedger(ledger domain.RunLedger) IngestOption {
	return func(uc *IngestObjectUseCase) { uc.ledger = ledger }
}

// WithRedactor masks record fields before they are indexed or dead-lettered.
func WithRedactor(r *pii.Redactor) IngestOption {
	return func(uc *IngestObjectUseCase) { uc.redactor = r }
}

// WithRateLimiter bounds the rate of index writes.
func WithRateLimiter(l *rate.Limiter) IngestOption {
	return func(uc *IngestObjectUseCase) { uc.limiter = l }
}

// WithMetrics reports object, row and latency metrics.
func WithMetrics(m *metrics.IndexerMetrics) IngestOption {
	return func(uc *IngestObjectUseCase) { uc.metrics = m }
}

// WithRowErrorPolicy selects whether a failed row aborts the rest of its object.
func WithRowErrorPolicy(p domain.RowErrorPolicy) IngestOption {
	return func(uc *IngestObjectUseCase) { uc.policy = p }
}

// IngestObjectUseCase fetches uploaded CSV objects and indexes one document per row.
type IngestObjectUseCase struct {
	store       domain.ObjectStore
	index       domain.SearchIndex
	logger      *slog.Logger
	deadLetters domain.DeadLetterRepository
	ledger      domain.RunLedger
	redactor    *pii.Redactor
	limiter     *rate.Limiter
	metrics     *metrics.IndexerMetrics
	policy      domain.RowErrorPolicy
	now         func() time.Time
}

// NewIngestObjectUseCase creates a new IngestObjectUseCase.
func NewIngestObjectUseCase(store domain.ObjectStore, index domain.SearchIndex, logger *slog.Logger, opts ...IngestOption) *IngestObjectUseCase {
	uc := &IngestObjectUseCase{
		store:  store,
		index:  index,
		logger: logger.With("component", "ingest"),
		policy: domain.PolicySkip,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// HandleNotification ingests every referenced object in order.
// The summary is always returned; object failures are joined into the error.
func (uc *IngestObjectUseCase) HandleNotification(ctx context.Context, refs []domain.ObjectRef) (*domain.Summary, error) {
	if len(refs) == 0 {
		return nil, domain.ErrEmptyNotification
	}

	summary := &domain.Summary{Status: domain.StatusSuccess}
	var errs []error
	for _, ref := range refs {
		res, err := uc.IngestObject(ctx, ref)
		summary.Add(res)
		if err != nil {
			errs = append(errs, fmt.Errorf("s3://%s/%s: %w", ref.Bucket, ref.Key, err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	return summary, errors.Join(errs...)
}

// IngestObject runs fetch, decode, parse and index for a single object.
// Rows are handled one at a time: each is indexed before the next is read.
func (uc *IngestObjectUseCase) IngestObject(ctx context.Context, ref domain.ObjectRef) (res domain.ObjectResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "IngestObject")
	defer span.End()
	span.SetAttributes(attribute.String("s3.bucket", ref.Bucket), attribute.String("s3.key", ref.Key))

	run := domain.IngestRun{
		RunID:     uuid.NewString(),
		Bucket:    ref.Bucket,
		Key:       ref.Key,
		ETag:      ref.ETag,
		StartedAt: uc.now().UTC(),
	}
	res = domain.ObjectResult{Ref: ref, RunID: run.RunID}
	logger := uc.logger.With("run_id", run.RunID, "bucket", ref.Bucket, "key", ref.Key)

	defer func() {
		if err != nil {
			res.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, "object ingestion failed")
		}
		span.SetAttributes(attribute.Int("rows.indexed", res.Indexed), attribute.Int("rows.failed", res.Failed))
		uc.finish(ctx, logger, run, res, err)
	}()

	obj, err := uc.store.GetObject(ctx, ref)
	if err != nil {
		return res, fmt.Errorf("fetch failed: %w", err)
	}
	res.Ref = obj.Ref
	run.ETag = obj.Ref.ETag
	run.Bytes = int64(len(obj.Body))
	if uc.metrics != nil {
		uc.metrics.BytesTotal.Add(float64(len(obj.Body)))
	}

	reader, err := csvlog.NewReader(obj.Body)
	if err != nil {
		return res, fmt.Errorf("decode failed: %w", err)
	}

	for {
		row, readErr := reader.Next()
		if errors.Is(readErr, io.EOF) {
			break
		}
		var rowErr *csvlog.RowError
		if readErr != nil && !errors.As(readErr, &rowErr) {
			return res, fmt.Errorf("read failed: %w", readErr)
		}
		res.Rows++

		var record domain.LogRecord
		parseErr := readErr
		if parseErr == nil {
			record, parseErr = csvlog.ParseRecord(row)
		}
		if parseErr != nil {
			if uc.rowFailed(ctx, logger, run.RunID, &res, row, nil, domain.ReasonParse, parseErr) {
				return res, fmt.Errorf("%w: %v", domain.ErrRowAborted, parseErr)
			}
			continue
		}

		uc.redactor.Redact(&record)
		if indexErr := uc.write(ctx, record); indexErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// The row was never settled, so it does not count as read.
				res.Rows--
				return res, ctxErr
			}
			if uc.rowFailed(ctx, logger, run.RunID, &res, row, &record, domain.ReasonIndex, indexErr) {
				return res, fmt.Errorf("%w: line %d: %v", domain.ErrRowAborted, row.Line, indexErr)
			}
			continue
		}

		res.Indexed++
		if uc.metrics != nil {
			uc.metrics.RowsTotal.WithLabelValues("indexed").Inc()
		}
	}

	return res, nil
}

func (uc *IngestObjectUseCase) write(ctx context.Context, record domain.LogRecord) error {
	if uc.limiter != nil {
		if err := uc.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	err := uc.index.Index(ctx, record)
	if uc.metrics != nil {
		uc.metrics.IndexDuration.Observe(time.Since(start).Seconds())
	}
	return err
}

// rowFailed accounts for a failed row and reports whether the object must stop.
func (uc *IngestObjectUseCase) rowFailed(ctx context.Context, logger *slog.Logger, runID string, res *domain.ObjectResult, row csvlog.Row, record *domain.LogRecord, reason domain.FailureReason, cause error) bool {
	res.Failed++
	if uc.metrics != nil {
		uc.metrics.RowsTotal.WithLabelValues("error_" + string(reason)).Inc()
	}
	logger.Warn("row not indexed", "line", row.Line, "reason", reason, "error", cause)

	if uc.deadLetters != nil {
		dl := domain.DeadLetter{
			ID:       uuid.NewString(),
			RunID:    runID,
			Bucket:   res.Ref.Bucket,
			Key:      res.Ref.Key,
			Line:     row.Line,
			Reason:   reason,
			Error:    cause.Error(),
			Record:   record,
			FailedAt: uc.now().UTC(),
		}
		if record == nil {
			dl.Row = uc.redactor.RedactRow(row.Values)
		}
		if err := uc.deadLetters.Add(ctx, dl); err != nil {
			logger.Error("failed to dead-letter row", "line", row.Line, "error", err)
		}
	}

	return uc.policy == domain.PolicyAbort
}

func (uc *IngestObjectUseCase) finish(ctx context.Context, logger *slog.Logger, run domain.IngestRun, res domain.ObjectResult, err error) {
	run.Rows = res.Rows
	run.Indexed = res.Indexed
	run.Failed = res.Failed
	run.FinishedAt = uc.now().UTC()

	status := "ok"
	if err != nil {
		status = "error"
		run.Error = err.Error()
		logger.Error("object ingestion failed", "rows", res.Rows, "indexed", res.Indexed, "failed", res.Failed, "error", err)
	} else {
		logger.Info("object ingested", "rows", res.Rows, "indexed", res.Indexed, "failed", res.Failed,
			"duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds())
	}
	if uc.metrics != nil {
		uc.metrics.ObjectsTotal.WithLabelValues(status).Inc()
	}

	if uc.ledger != nil {
		if lerr := uc.ledger.Record(context.WithoutCancel(ctx), run); lerr != nil {
			logger.Error("failed to record ingest run", "error", lerr)
		}
	}
}
