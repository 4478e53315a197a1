package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
	"github.com/dkosarev/trackfilter-backend/pkg/ctxutil"
)

// visitService defines the minimal interface needed by VisitHandler.
type visitService interface {
	RecordVisit(ctx context.Context, issueID, userID uuid.UUID, at time.Time) (domain.VisitRecord, error)
}

// VisitHandler records issue views for the acting user.
type VisitHandler struct {
	svc visitService
	log *slog.Logger
}

// NewVisitHandler creates a VisitHandler.
func NewVisitHandler(svc visitService, logger *slog.Logger) *VisitHandler {
	return &VisitHandler{svc: svc, log: logger.With("handler", "visit")}
}

type visitResponse struct {
	IssueID       string    `json:"issueId"`
	UserID        string    `json:"userId"`
	LastVisitedAt time.Time `json:"lastVisitedAt"`
	VisitCount    int       `json:"visitCount"`
}

// Record handles POST /issues/{id}/visit.
func (h *VisitHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctxutil.ActingUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	issueID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue id")
		return
	}

	vr, err := h.svc.RecordVisit(r.Context(), issueID, userID, time.Now().UTC())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "issue not found")
		return
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.ErrorContext(r.Context(), "record visit failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, visitResponse{
		IssueID:       vr.IssueID.String(),
		UserID:        vr.UserID.String(),
		LastVisitedAt: vr.LastVisitedAt,
		VisitCount:    vr.VisitCount,
	})
}
