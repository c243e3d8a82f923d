package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/quaylabs/obindexer/internal/domain"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checkpoints domain.CheckpointStore
	logger      *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checkpoints may be nil when
// running in server-only mode against an already indexed database.
func NewHealthHandler(checkpoints domain.CheckpointStore, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checkpoints: checkpoints, logger: logger}
}

// HealthCheck responds with the server status and the last indexed block.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.checkpoints != nil {
		cp, err := h.checkpoints.Get(r.Context())
		switch {
		case err == nil:
			resp["last_block"] = cp.BlockNumber
			resp["indexed_at"] = cp.UpdatedAt.Format(time.RFC3339)
		case errors.Is(err, domain.ErrNotFound):
			resp["last_block"] = nil
		default:
			h.logger.ErrorContext(r.Context(), "handler: checkpoint read failed",
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
