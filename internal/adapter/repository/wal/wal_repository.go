package wal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

const (
	segmentPrefix = "deadletters-"
	segmentSuffix = ".jsonl"
	filePerm      = 0644
)

// ErrWALFull is returned when a write would push the WAL past its disk budget.
var ErrWALFull = errors.New("dead-letter WAL is full")

// WALRepository is a segmented, newline-delimited JSON log of dead letters
// kept on local disk while the dead-letter stream is unreachable.
type WALRepository struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu          sync.Mutex
	current     *os.File
	currentSize int64
	totalSize   int64
}

// NewWALRepository opens (or creates) the WAL in dir.
func NewWALRepository(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*WALRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory %s: %w", dir, err)
	}

	w := &WALRepository{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "deadletter_wal"),
	}

	segments, err := w.segments()
	if err != nil {
		return nil, err
	}
	for _, s := range segments {
		info, err := os.Stat(s)
		if err != nil {
			return nil, fmt.Errorf("failed to stat WAL segment %s: %w", s, err)
		}
		w.totalSize += info.Size()
	}
	if len(segments) > 0 {
		w.logger.Info("Found existing WAL segments", "segment_count", len(segments), "bytes", w.totalSize)
	}

	return w, nil
}

// Write appends a dead letter to the active segment, opening or rotating segments as needed.
func (w *WALRepository) Write(ctx context.Context, dl domain.DeadLetter) error {
	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter for WAL: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.totalSize+int64(len(data)) > w.maxTotalSize {
		return fmt.Errorf("%w (%d + %d > %d bytes)", ErrWALFull, w.totalSize, len(data), w.maxTotalSize)
	}

	if w.current == nil || w.currentSize >= w.maxSegmentSize {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	n, err := w.current.Write(data)
	w.currentSize += int64(n)
	w.totalSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write to WAL segment: %w", err)
	}
	return nil
}

// Empty reports whether the WAL holds any data.
func (w *WALRepository) Empty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalSize == 0
}

// Replay feeds every stored dead letter, oldest segment first, to handler.
// It stops at the first handler error so nothing is lost before Truncate.
func (w *WALRepository) Replay(ctx context.Context, handler func(dl domain.DeadLetter) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.closeCurrent(); err != nil {
		w.logger.Error("Failed to close WAL segment before replay", "error", err)
	}

	segments, err := w.segments()
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return nil
	}
	w.logger.Info("Starting WAL replay", "segment_count", len(segments))

	for _, path := range segments {
		if err := replaySegment(ctx, path, handler, w.logger); err != nil {
			return err
		}
	}

	w.logger.Info("WAL replay completed")
	return nil
}

func replaySegment(ctx context.Context, path string, handler func(dl domain.DeadLetter) error, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open segment %s for replay: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var dl domain.DeadLetter
		if err := json.Unmarshal(scanner.Bytes(), &dl); err != nil {
			logger.Warn("Failed to unmarshal dead letter from WAL, skipping", "error", err, "segment", path)
			continue
		}
		if err := handler(dl); err != nil {
			return fmt.Errorf("replay handler failed: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return nil
}

// Truncate removes all WAL segments.
func (w *WALRepository) Truncate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.closeCurrent(); err != nil {
		w.logger.Error("Failed to close WAL segment before truncate", "error", err)
	}

	segments, err := w.segments()
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range segments {
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove WAL segment %s: %w", path, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	w.totalSize = 0
	w.logger.Info("WAL truncated", "segment_count", len(segments))
	return nil
}

// Close syncs and closes the active segment.
func (w *WALRepository) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeCurrent()
}

func (w *WALRepository) rotate() error {
	if err := w.closeCurrent(); err != nil {
		w.logger.Error("Failed to close WAL segment before rotating", "error", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s%020d%s", segmentPrefix, time.Now().UnixNano(), segmentSuffix))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create WAL segment %s: %w", path, err)
	}

	w.current = f
	w.currentSize = 0
	w.logger.Debug("Rotated to new WAL segment", "path", path)
	return nil
}

func (w *WALRepository) closeCurrent() error {
	if w.current == nil {
		return nil
	}
	f := w.current
	w.current = nil
	w.currentSize = 0
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (w *WALRepository) segments() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAL directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentSuffix) {
			segments = append(segments, filepath.Join(w.dir, name))
		}
	}
	sort.Strings(segments)
	return segments, nil
}
