package rest

import "net/http"

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Health    *HealthHandler
	Query     *QueryHandler
	Visit     *VisitHandler
	Recompute *RecomputeHandler
}

// NewRouter mounts all REST routes on a fresh mux.
func NewRouter(deps RouterDeps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /live", deps.Health.Live)
	mux.HandleFunc("GET /ready", deps.Health.Ready)
	mux.HandleFunc("GET /health", deps.Health.Health)

	mux.HandleFunc("POST /query", deps.Query.Evaluate)
	mux.HandleFunc("POST /issues/{id}/visit", deps.Visit.Record)
	mux.HandleFunc("POST /participants/recompute", deps.Recompute.Trigger)

	return mux
}
