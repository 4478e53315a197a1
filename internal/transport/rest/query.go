package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
	"github.com/dkosarev/trackfilter-backend/internal/service/query"
)

// QueryHandler serves filter query evaluation.
type QueryHandler struct {
	svc *query.Service
	log *slog.Logger
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(svc *query.Service, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, log: logger.With("handler", "query")}
}

type filterRequest struct {
	Name     string   `json:"name"`
	Operator string   `json:"operator"`
	Operands []string `json:"operands,omitempty"`
}

type queryRequest struct {
	Filters []filterRequest `json:"filters"`
	GroupBy string          `json:"groupBy,omitempty"`
	// Result selects the accessor: count (default), ids, issues, groupCounts.
	Result string `json:"result,omitempty"`
}

type issueResponse struct {
	ID         string  `json:"id"`
	Project    string  `json:"project"`
	Subject    string  `json:"subject"`
	Status     string  `json:"status"`
	AuthorID   string  `json:"authorId"`
	AssigneeID *string `json:"assigneeId,omitempty"`
}

type queryResponse struct {
	Count       *int            `json:"count,omitempty"`
	IDs         []string        `json:"ids,omitempty"`
	Issues      []issueResponse `json:"issues,omitempty"`
	GroupCounts map[string]int  `json:"groupCounts,omitempty"`
}

// Evaluate handles POST /query.
func (h *QueryHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q := h.svc.NewQuery()

	for _, f := range req.Filters {
		if err := q.AddFilter(f.Name, domain.FilterOperator(f.Operator), f.Operands...); err != nil {
			h.respondError(w, r.Context(), err)
			return
		}
	}
	if req.GroupBy != "" {
		if err := q.GroupBy(domain.GroupDimension(req.GroupBy)); err != nil {
			h.respondError(w, r.Context(), err)
			return
		}
	}

	var resp queryResponse
	var err error

	switch req.Result {
	case "", "count":
		var n int
		if n, err = q.Count(r.Context()); err == nil {
			resp.Count = &n
		}
	case "ids":
		var ids []string
		uids, idsErr := q.IDs(r.Context())
		if idsErr == nil {
			ids = make([]string, len(uids))
			for i, id := range uids {
				ids[i] = id.String()
			}
			resp.IDs = ids
		}
		err = idsErr
	case "issues":
		var issues []domain.Issue
		if issues, err = q.Issues(r.Context()); err == nil {
			resp.Issues = toIssueResponses(issues)
		}
	case "groupCounts":
		if resp.GroupCounts, err = q.CountByGroup(r.Context()); err == nil && resp.GroupCounts == nil {
			resp.GroupCounts = map[string]int{}
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown result kind: "+req.Result)
		return
	}

	if err != nil {
		h.respondError(w, r.Context(), err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *QueryHandler) respondError(w http.ResponseWriter, ctx context.Context, err error) {
	var unknown *domain.UnknownFilterError
	var invalid *domain.InvalidFilterError

	switch {
	case errors.As(err, &unknown), errors.As(err, &invalid), errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "authentication required")
	default:
		h.log.ErrorContext(ctx, "query evaluation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func toIssueResponses(issues []domain.Issue) []issueResponse {
	out := make([]issueResponse, len(issues))
	for i, is := range issues {
		out[i] = issueResponse{
			ID:       is.ID.String(),
			Project:  is.Project,
			Subject:  is.Subject,
			Status:   string(is.Status),
			AuthorID: is.AuthorID.String(),
		}
		if is.AssigneeID != nil {
			s := is.AssigneeID.String()
			out[i].AssigneeID = &s
		}
	}
	return out
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
