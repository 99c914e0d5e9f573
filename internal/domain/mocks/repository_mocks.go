package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

// MockObjectStore serves objects from an in-memory map keyed by "bucket/key".
type MockObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	GetErr  error
	Calls   []domain.ObjectRef
}

func (m *MockObjectStore) GetObject(ctx context.Context, ref domain.ObjectRef) (*domain.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ref)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	body, ok := m.Objects[ref.Bucket+"/"+ref.Key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	return &domain.Object{Ref: ref, Body: body}, nil
}

// MockSearchIndex records every indexed document.
// IndexFunc, when set, decides the error returned for each record.
type MockSearchIndex struct {
	mu        sync.Mutex
	Indexed   []domain.LogRecord
	Calls     int
	IndexErr  error
	IndexFunc func(record domain.LogRecord) error
}

func (m *MockSearchIndex) Index(ctx context.Context, record domain.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.IndexFunc != nil {
		if err := m.IndexFunc(record); err != nil {
			return err
		}
	} else if m.IndexErr != nil {
		return m.IndexErr
	}
	m.Indexed = append(m.Indexed, record)
	return nil
}

// MockDeadLetterRepository is a mock implementation of domain.DeadLetterRepository for testing.
type MockDeadLetterRepository struct {
	mu              sync.Mutex
	Added           []domain.DeadLetter
	AckedMessageIDs []string
	ReadBatchResult []domain.DeadLetter
	ClaimResult     []domain.DeadLetter
	ReadCounts      []int
	AddErr          error
	ReadErr         error
	ClaimErr        error
	AckErr          error
}

func (m *MockDeadLetterRepository) Add(ctx context.Context, dl domain.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Added = append(m.Added, dl)
	return nil
}

func (m *MockDeadLetterRepository) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadCounts = append(m.ReadCounts, count)
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.ReadBatchResult, nil
}

func (m *MockDeadLetterRepository) ClaimStale(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]domain.DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	return m.ClaimResult, nil
}

func (m *MockDeadLetterRepository) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

// MockRunLedger collects recorded runs.
type MockRunLedger struct {
	mu        sync.Mutex
	Runs      []domain.IngestRun
	RecordErr error
}

func (m *MockRunLedger) Record(ctx context.Context, run domain.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Runs = append(m.Runs, run)
	return nil
}

// MockDeadLetterInspector returns canned stream state.
type MockDeadLetterInspector struct {
	mu            sync.Mutex
	StatsResult   *domain.DeadLetterStats
	PendingResult []domain.PendingDeadLetter
	TrimResult    int64
	Err           error
	PendingGroup  string
	PendingCount  int64
	TrimMaxLen    int64
}

func (m *MockDeadLetterInspector) Stats(ctx context.Context) (*domain.DeadLetterStats, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.StatsResult, nil
}

func (m *MockDeadLetterInspector) Pending(ctx context.Context, group string, count int64) ([]domain.PendingDeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PendingGroup, m.PendingCount = group, count
	if m.Err != nil {
		return nil, m.Err
	}
	return m.PendingResult, nil
}

func (m *MockDeadLetterInspector) Trim(ctx context.Context, maxLen int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TrimMaxLen = maxLen
	if m.Err != nil {
		return 0, m.Err
	}
	return m.TrimResult, nil
}
