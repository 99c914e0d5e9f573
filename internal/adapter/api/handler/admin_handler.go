package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/V4T54L/csv-indexer/internal/usecase"
)

// AdminHandler handles HTTP requests for dead-letter stream administration.
type AdminHandler struct {
	uc     *usecase.AdminStreamUseCase
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(uc *usecase.AdminStreamUseCase, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{uc: uc, logger: logger}
}

// HealthCheck returns a liveness endpoint that needs no backing store.
func HealthCheck(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// GetStats handles requests for the dead-letter stream summary.
// GET /admin/deadletters
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.uc.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to get dead-letter stats", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, stats)
}

// GetPending handles requests to list unacknowledged dead letters.
// GET /admin/deadletters/pending?group={group}&count={count}
func (h *AdminHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")

	var count int64
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		var err error
		count, err = strconv.ParseInt(countStr, 10, 64)
		if err != nil {
			http.Error(w, "invalid count parameter", http.StatusBadRequest)
			return
		}
	}

	pending, err := h.uc.Pending(r.Context(), group, count)
	if err != nil {
		h.logger.Error("failed to get pending dead letters", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, pending)
}

// TrimStream handles requests to trim the dead-letter stream.
// POST /admin/deadletters/trim
func (h *AdminHandler) TrimStream(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		MaxLen int64 `json:"maxlen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	trimmed, err := h.uc.Trim(r.Context(), payload.MaxLen)
	if errors.Is(err, usecase.ErrInvalidArgument) {
		http.Error(w, "maxlen must not be negative", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("failed to trim stream", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]int64{"trimmed": trimmed})
}
