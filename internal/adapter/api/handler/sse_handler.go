package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// SSEMessage is the per-second indexing throughput pushed to subscribers.
type SSEMessage struct {
	IndexedRate float64 `json:"indexed_rate"`
	FailedRate  float64 `json:"failed_rate"`
}

type rowReport struct {
	indexed int
	failed  int
}

// SSEBroker manages SSE client connections and broadcasts throughput messages.
type SSEBroker struct {
	logger  *slog.Logger
	clients map[chan []byte]struct{}
	mu      sync.RWMutex
	reports chan rowReport
	tick    time.Duration
}

// NewSSEBroker creates a new SSEBroker and starts its processing loop.
func NewSSEBroker(ctx context.Context, logger *slog.Logger) *SSEBroker {
	return newSSEBroker(ctx, logger, time.Second)
}

func newSSEBroker(ctx context.Context, logger *slog.Logger, tick time.Duration) *SSEBroker {
	broker := &SSEBroker{
		logger:  logger,
		clients: make(map[chan []byte]struct{}),
		reports: make(chan rowReport, 1000),
		tick:    tick,
	}
	go broker.run(ctx)
	return broker
}

// ServeHTTP handles new client connections for the SSE stream.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	messageChan := make(chan []byte, 8)
	b.addClient(messageChan)
	defer b.removeClient(messageChan)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// ReportRows is called after a notification was handled with its row outcome.
func (b *SSEBroker) ReportRows(indexed, failed int) {
	select {
	case b.reports <- rowReport{indexed: indexed, failed: failed}:
	default:
		// Never block the ingest path on a slow broker.
		b.logger.Warn("SSE report channel is full, dropping report")
	}
}

func (b *SSEBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("SSE client connected")
}

func (b *SSEBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Info("SSE client disconnected")
	}
}

func (b *SSEBroker) broadcast(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			// slow client
		}
	}
}

func (b *SSEBroker) run(ctx context.Context) {
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	var current rowReport
	lastTimestamp := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case rep := <-b.reports:
			current.indexed += rep.indexed
			current.failed += rep.failed
		case <-ticker.C:
			now := time.Now()
			msg := SSEMessage{}
			if d := now.Sub(lastTimestamp).Seconds(); d > 0 {
				msg.IndexedRate = float64(current.indexed) / d
				msg.FailedRate = float64(current.failed) / d
			}

			jsonData, err := json.Marshal(msg)
			if err != nil {
				b.logger.Error("Failed to marshal SSE message", "error", err)
				continue
			}
			b.broadcast(jsonData)

			lastTimestamp = now
			current = rowReport{}
		}
	}
}
