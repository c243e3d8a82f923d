package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/quaylabs/obindexer/internal/domain"
)

// ClearHandler serves settlement history endpoints.
type ClearHandler struct {
	clears domain.ClearStore
	logger *slog.Logger
}

// NewClearHandler creates a ClearHandler.
func NewClearHandler(clears domain.ClearStore, logger *slog.Logger) *ClearHandler {
	return &ClearHandler{clears: clears, logger: logger}
}

type listClearsResponse struct {
	Clears []domain.Clear `json:"clears"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListRecent returns settlements in reverse chronological order.
// GET /api/clears
func (h *ClearHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	clears, err := h.clears.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list clears failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list clears")
		return
	}

	writeJSON(w, http.StatusOK, listClearsResponse{
		Clears: clears,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetClear returns a single settlement by its entity id.
// GET /api/clears/{id}
func (h *ClearHandler) GetClear(w http.ResponseWriter, r *http.Request) {
	id, ok := parseHash(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid clear id")
		return
	}

	clear, err := h.clears.GetClear(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "clear not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get clear failed",
			slog.String("clear_id", id.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get clear")
		return
	}

	writeJSON(w, http.StatusOK, clear)
}
