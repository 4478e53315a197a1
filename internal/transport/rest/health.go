package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds one probe round trip.
const checkTimeout = 3 * time.Second

type dbPinger interface {
	Ping(ctx context.Context) error
}

// aggregateStatus reports when the participant aggregate was last rebuilt.
// Staleness is informational: it never fails a probe, it only shows up in
// the full health report so operators know a recompute is overdue.
type aggregateStatus interface {
	LastRefreshedAt(ctx context.Context) (*time.Time, error)
}

// HealthHandler serves the liveness, readiness, and health endpoints.
type HealthHandler struct {
	db           dbPinger
	participants aggregateStatus
	version      string
	now          func() time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db dbPinger, participants aggregateStatus, version string) *HealthHandler {
	return &HealthHandler{
		db:           db,
		participants: participants,
		version:      version,
		now:          time.Now,
	}
}

// HealthResponse is the JSON body of /ready and /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	CheckedAt time.Time              `json:"checkedAt"`
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const (
	statusUp    = "up"
	statusDown  = "down"
	statusStale = "stale"
)

// Live is the liveness probe. Always 200: the process is running.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    statusUp,
		CheckedAt: h.now(),
	})
}

// Ready is the readiness probe. The service can serve queries iff the
// database answers; 503 takes the instance out of rotation.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status, code := statusUp, http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		status, code = statusDown, http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		CheckedAt: h.now(),
	})
}

// Health is the full report: database reachability with latency, plus the
// age of the participant aggregate. Only the database gates the status
// code; a stale aggregate is reported but does not fail the check.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	checks := map[string]CheckResult{
		"database":     h.checkDatabase(ctx),
		"participants": h.checkParticipants(ctx),
	}

	status, code := statusUp, http.StatusOK
	if checks["database"].Status == statusDown {
		status, code = statusDown, http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Version:   h.version,
		Checks:    checks,
		CheckedAt: h.now(),
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckResult {
	start := h.now()
	if err := h.db.Ping(ctx); err != nil {
		return CheckResult{Status: statusDown, Detail: err.Error()}
	}
	return CheckResult{Status: statusUp, Detail: time.Since(start).String()}
}

func (h *HealthHandler) checkParticipants(ctx context.Context) CheckResult {
	refreshedAt, err := h.participants.LastRefreshedAt(ctx)
	if err != nil {
		return CheckResult{Status: statusDown, Detail: err.Error()}
	}
	if refreshedAt == nil {
		return CheckResult{Status: statusStale, Detail: "never recomputed"}
	}
	return CheckResult{
		Status: statusUp,
		Detail: "refreshed " + h.now().Sub(*refreshedAt).Round(time.Second).String() + " ago",
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
