package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type dbPingerMock struct {
	err error
}

func (m *dbPingerMock) Ping(_ context.Context) error {
	return m.err
}

type aggregateStatusMock struct {
	refreshedAt *time.Time
	err         error
}

func (m *aggregateStatusMock) LastRefreshedAt(_ context.Context) (*time.Time, error) {
	return m.refreshedAt, m.err
}

func newHealthHandler(db *dbPingerMock, agg *aggregateStatusMock) *HealthHandler {
	if db == nil {
		db = &dbPingerMock{}
	}
	if agg == nil {
		agg = &aggregateStatusMock{}
	}
	return NewHealthHandler(db, agg, "v1.0.0")
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestLive_Always200(t *testing.T) {
	t.Parallel()

	h := newHealthHandler(&dbPingerMock{err: errors.New("connection refused")}, nil)

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "up" {
		t.Errorf("status = %q, want up", resp.Status)
	}
	if resp.CheckedAt.IsZero() {
		t.Error("checkedAt is zero")
	}
}

func TestReady_DBUp(t *testing.T) {
	t.Parallel()

	h := newHealthHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp := decodeHealth(t, rec); resp.Status != "up" {
		t.Errorf("status = %q, want up", resp.Status)
	}
}

func TestReady_DBDown(t *testing.T) {
	t.Parallel()

	h := newHealthHandler(&dbPingerMock{err: errors.New("connection refused")}, nil)

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp := decodeHealth(t, rec); resp.Status != "down" {
		t.Errorf("status = %q, want down", resp.Status)
	}
}

func TestHealth_AllUp(t *testing.T) {
	t.Parallel()

	refreshed := time.Now().Add(-10 * time.Minute)
	h := newHealthHandler(nil, &aggregateStatusMock{refreshedAt: &refreshed})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "up" {
		t.Errorf("status = %q, want up", resp.Status)
	}
	if resp.Version != "v1.0.0" {
		t.Errorf("version = %q, want v1.0.0", resp.Version)
	}

	db, ok := resp.Checks["database"]
	if !ok {
		t.Fatal("missing database check")
	}
	if db.Status != "up" || db.Detail == "" {
		t.Errorf("database check = %+v, want up with latency detail", db)
	}

	agg, ok := resp.Checks["participants"]
	if !ok {
		t.Fatal("missing participants check")
	}
	if agg.Status != "up" {
		t.Errorf("participants check = %+v, want up", agg)
	}
}

func TestHealth_DBDown(t *testing.T) {
	t.Parallel()

	h := newHealthHandler(&dbPingerMock{err: errors.New("connection refused")}, nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "down" {
		t.Errorf("status = %q, want down", resp.Status)
	}
	if db := resp.Checks["database"]; db.Status != "down" || db.Detail == "" {
		t.Errorf("database check = %+v, want down with error detail", db)
	}
}

func TestHealth_StaleAggregateDoesNotFailProbe(t *testing.T) {
	t.Parallel()

	// Never recomputed: reported, but the instance stays in rotation.
	h := newHealthHandler(nil, &aggregateStatusMock{refreshedAt: nil})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeHealth(t, rec)
	if resp.Status != "up" {
		t.Errorf("status = %q, want up", resp.Status)
	}
	if agg := resp.Checks["participants"]; agg.Status != "stale" {
		t.Errorf("participants check = %+v, want stale", agg)
	}
}

func TestHealth_AggregateErrorDoesNotFailProbe(t *testing.T) {
	t.Parallel()

	h := newHealthHandler(nil, &aggregateStatusMock{err: errors.New("relation missing")})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if agg := decodeHealth(t, rec).Checks["participants"]; agg.Status != "down" {
		t.Errorf("participants check = %+v, want down", agg)
	}
}
