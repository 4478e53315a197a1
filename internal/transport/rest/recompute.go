package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// recomputeService defines the minimal interface needed by RecomputeHandler.
type recomputeService interface {
	RecomputeAll(ctx context.Context) (int, error)
}

// RecomputeHandler triggers the bulk participant recompute.
type RecomputeHandler struct {
	svc     recomputeService
	log     *slog.Logger
	timeout time.Duration
}

// NewRecomputeHandler creates a RecomputeHandler.
func NewRecomputeHandler(svc recomputeService, logger *slog.Logger, timeout time.Duration) *RecomputeHandler {
	return &RecomputeHandler{
		svc:     svc,
		log:     logger.With("handler", "recompute"),
		timeout: timeout,
	}
}

type recomputeResponse struct {
	Issues int `json:"issues"`
}

// Trigger handles POST /participants/recompute. At most one recompute runs
// at a time; a concurrent trigger gets 409.
func (h *RecomputeHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	done, err := h.svc.RecomputeAll(ctx)
	switch {
	case errors.Is(err, domain.ErrRecomputeRunning):
		writeError(w, http.StatusConflict, "recompute already running")
		return
	case err != nil:
		h.log.ErrorContext(r.Context(), "participant recompute failed",
			slog.String("error", err.Error()), slog.Int("issues_done", done))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, recomputeResponse{Issues: done})
}
