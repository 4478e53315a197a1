package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
	"github.com/dkosarev/trackfilter-backend/pkg/ctxutil"
)

// ---------------------------------------------------------------------------
// id sets
// ---------------------------------------------------------------------------

type idSet map[uuid.UUID]struct{}

func newIDSet(ids []uuid.UUID) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) intersect(other idSet) idSet {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	out := make(idSet, len(small))
	for id := range small {
		if _, ok := big[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s idSet) sorted() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ---------------------------------------------------------------------------
// evaluation
//
// One evaluation is a self-contained read-only computation over the snapshot
// visible at call time. Collaborator reads are cached for its duration so a
// query with several derived filters touches each store once; nothing is
// shared between evaluations.
// ---------------------------------------------------------------------------

type evaluation struct {
	svc   *Service
	scope []uuid.UUID
	today string

	user    uuid.UUID
	hasUser bool

	journalLoader *journalLoader
	issueCache    map[uuid.UUID]domain.Issue
	visitCache    map[uuid.UUID]domain.VisitRecord
	visitLoaded   bool
	partCache     map[uuid.UUID]map[uuid.UUID]struct{}
	partLoaded    bool
	stalenessDone bool
}

func (s *Service) newEvaluation(ctx context.Context, scope []uuid.UUID) *evaluation {
	user, hasUser := ctxutil.ActingUser(ctx)
	return &evaluation{
		svc:           s,
		scope:         scope,
		today:         dayKey(s.now(), s.loc),
		user:          user,
		hasUser:       hasUser,
		journalLoader: newJournalLoader(s.journal),
	}
}

// actingUser returns the caller-supplied current user. "Me"-relative filters
// are meaningless without one, so absence is an error, not an empty match.
func (ev *evaluation) actingUser() (uuid.UUID, error) {
	if !ev.hasUser {
		return uuid.Nil, fmt.Errorf("me-relative filter requires an acting user: %w", domain.ErrUnauthorized)
	}
	return ev.user, nil
}

// issueMeta returns the stored issues in scope, keyed by id.
func (ev *evaluation) issueMeta(ctx context.Context) (map[uuid.UUID]domain.Issue, error) {
	if ev.issueCache != nil {
		return ev.issueCache, nil
	}
	issues, err := ev.svc.issues.ListByIDs(ctx, ev.scope)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	ev.issueCache = make(map[uuid.UUID]domain.Issue, len(issues))
	for _, it := range issues {
		ev.issueCache[it.ID] = it
	}
	return ev.issueCache, nil
}

// journals returns each scope issue's journal, batched through the loader.
func (ev *evaluation) journals(ctx context.Context) (map[uuid.UUID][]domain.JournalEntry, error) {
	return ev.journalLoader.loadAll(ctx, ev.scope)
}

// userVisits returns the acting user's visit rows for the scope.
func (ev *evaluation) userVisits(ctx context.Context) (map[uuid.UUID]domain.VisitRecord, error) {
	if ev.visitLoaded {
		return ev.visitCache, nil
	}
	user, err := ev.actingUser()
	if err != nil {
		return nil, err
	}
	rows, err := ev.svc.visits.ListByUser(ctx, user, ev.scope)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	ev.visitCache = make(map[uuid.UUID]domain.VisitRecord, len(rows))
	for _, vr := range rows {
		ev.visitCache[vr.IssueID] = vr
	}
	ev.visitLoaded = true
	return ev.visitCache, nil
}

// participantSets returns the materialized participant sets for the scope,
// warning (once per evaluation) when the aggregate predates the newest
// journal entry. The query still runs: staleness is a documented consistency
// gap, not a failure.
func (ev *evaluation) participantSets(ctx context.Context) (map[uuid.UUID]map[uuid.UUID]struct{}, error) {
	if ev.partLoaded {
		return ev.partCache, nil
	}

	ev.warnIfStale(ctx)

	rows, err := ev.svc.participants.ListByIssueIDs(ctx, ev.scope)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	ev.partCache = make(map[uuid.UUID]map[uuid.UUID]struct{})
	for _, p := range rows {
		set, ok := ev.partCache[p.IssueID]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			ev.partCache[p.IssueID] = set
		}
		set[p.UserID] = struct{}{}
	}
	ev.partLoaded = true
	return ev.partCache, nil
}

func (ev *evaluation) warnIfStale(ctx context.Context) {
	if ev.stalenessDone {
		return
	}
	ev.stalenessDone = true

	refreshedAt, err := ev.svc.participants.LastRefreshedAt(ctx)
	if err != nil {
		return
	}
	latestEntry, err := ev.svc.journal.LatestEntryAt(ctx)
	if err != nil || latestEntry == nil {
		return
	}

	if refreshedAt == nil || refreshedAt.Before(*latestEntry) {
		ev.svc.log.WarnContext(ctx, "participant aggregate is stale, schedule a recompute",
			slog.Any("refreshed_at", refreshedAt),
			slog.Time("latest_journal_entry", *latestEntry),
		)
	}
}
