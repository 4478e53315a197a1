// Package participant maintains the materialized per-issue participant
// sets behind the participant filter. The recompute is a schedulable bulk
// maintenance operation, not a side effect of query evaluation: callers are
// expected to run it after journal-affecting mutations.
package participant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type issueRepo interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Issue, error)
}

type journalRepo interface {
	ListByIssueIDs(ctx context.Context, issueIDs []uuid.UUID) ([]domain.JournalEntry, error)
}

type participantRepo interface {
	// Replace swaps an issue's participant rows for the given set in one
	// atomic step, so concurrent readers see either the old or the new set.
	Replace(ctx context.Context, issueID uuid.UUID, userIDs []uuid.UUID) error
}

// batchSize bounds how many issues are loaded and recomputed per round trip.
const batchSize = 200

// Service recomputes participant sets.
type Service struct {
	issues   issueRepo
	journal  journalRepo
	replacer participantRepo
	log      *slog.Logger

	// running admits at most one recompute system-wide.
	running sync.Mutex
}

// NewService creates the participant service.
func NewService(log *slog.Logger, issues issueRepo, journal journalRepo, replacer participantRepo) *Service {
	return &Service{
		issues:   issues,
		journal:  journal,
		replacer: replacer,
		log:      log,
	}
}

// RecomputeAll rebuilds the participant set of every issue from scratch:
// {creation author} ∪ {every journal actor} ∪ {every user the assignee
// field ever pointed at}. Recomputing twice with no journal changes in
// between yields identical sets.
//
// Returns domain.ErrRecomputeRunning when another run is in progress.
// Cancellation is honored between issues: already-replaced sets stay
// correct and no set is left partially written.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	if !s.running.TryLock() {
		return 0, domain.ErrRecomputeRunning
	}
	defer s.running.Unlock()

	ids, err := s.issues.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list issue ids: %w", err)
	}

	done := 0
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		batch := ids[start:end]

		n, err := s.recomputeBatch(ctx, batch)
		done += n
		if err != nil {
			return done, err
		}
	}

	s.log.InfoContext(ctx, "participant recompute finished", slog.Int("issues", done))
	return done, nil
}

func (s *Service) recomputeBatch(ctx context.Context, ids []uuid.UUID) (int, error) {
	issues, err := s.issues.ListByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("list issues: %w", err)
	}
	entries, err := s.journal.ListByIssueIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("list journal entries: %w", err)
	}

	byIssue := make(map[uuid.UUID][]domain.JournalEntry, len(ids))
	for _, e := range entries {
		byIssue[e.IssueID] = append(byIssue[e.IssueID], e)
	}

	done := 0
	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		set := participantSet(issue, byIssue[issue.ID])
		if err := s.replacer.Replace(ctx, issue.ID, set); err != nil {
			return done, fmt.Errorf("replace participants for issue %s: %w", issue.ID, err)
		}
		done++
	}
	return done, nil
}

// participantSet derives the full participant set of one issue.
func participantSet(issue domain.Issue, entries []domain.JournalEntry) []uuid.UUID {
	set := map[uuid.UUID]struct{}{issue.AuthorID: {}}

	if issue.AssigneeID != nil {
		set[*issue.AssigneeID] = struct{}{}
	}

	for _, e := range entries {
		set[e.ActorID] = struct{}{}
		if e.Field != domain.FieldAssignee {
			continue
		}
		for _, v := range []*string{e.OldValue, e.NewValue} {
			if v == nil {
				continue
			}
			if id, err := uuid.Parse(*v); err == nil && id != uuid.Nil {
				set[id] = struct{}{}
			}
		}
	}

	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
