// Package query implements the filter/query engine: named filters over
// stored issue fields and over attributes derived from the journal, the
// visit log, and the participant aggregate, composed into count, grouped
// count, and id-list queries.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type issueRepo interface {
	// Scope returns the ids of issues matching all stored-field conditions.
	// No conditions means the whole base scope.
	Scope(ctx context.Context, conds []domain.StoredCondition) ([]uuid.UUID, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Issue, error)
	GroupKeys(ctx context.Context, ids []uuid.UUID, dim domain.GroupDimension) (map[uuid.UUID]string, error)
}

type journalRepo interface {
	ListByIssueIDs(ctx context.Context, issueIDs []uuid.UUID) ([]domain.JournalEntry, error)
	LatestEntryAt(ctx context.Context) (*time.Time, error)
}

type visitRepo interface {
	ListByUser(ctx context.Context, userID uuid.UUID, issueIDs []uuid.UUID) ([]domain.VisitRecord, error)
}

type participantRepo interface {
	ListByIssueIDs(ctx context.Context, issueIDs []uuid.UUID) ([]domain.Participant, error)
	LastRefreshedAt(ctx context.Context) (*time.Time, error)
}

type directory interface {
	// ExpandPrincipal resolves a principal id to concrete user ids: a user
	// id expands to itself, a group id to its direct members.
	ExpandPrincipal(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service evaluates filter queries. The filter registry is built once at
// construction and immutable afterwards; evaluation itself is read-only and
// safe for concurrent queries.
type Service struct {
	issues       issueRepo
	journal      journalRepo
	visits       visitRepo
	participants participantRepo
	directory    directory
	log          *slog.Logger
	loc          *time.Location
	now          func() time.Time
	registry     map[string]FilterDefinition
}

// NewService creates the query service and registers the built-in filters.
// loc is the timezone used to turn journal timestamps into filter dates.
func NewService(
	log *slog.Logger,
	issues issueRepo,
	journal journalRepo,
	visits visitRepo,
	participants participantRepo,
	directory directory,
	loc *time.Location,
) (*Service, error) {
	if loc == nil {
		loc = time.UTC
	}

	s := &Service{
		issues:       issues,
		journal:      journal,
		visits:       visits,
		participants: participants,
		directory:    directory,
		log:          log,
		loc:          loc,
		now:          time.Now,
		registry:     make(map[string]FilterDefinition),
	}

	if err := s.registerBuiltins(); err != nil {
		return nil, fmt.Errorf("register builtin filters: %w", err)
	}

	return s, nil
}

// Register adds a filter definition to the registry. Intended for startup
// wiring only; definitions cannot be replaced.
func (s *Service) Register(def FilterDefinition) error {
	name := def.Name()
	if _, exists := s.registry[name]; exists {
		return fmt.Errorf("filter %q: %w", name, domain.ErrAlreadyExists)
	}
	s.registry[name] = def
	return nil
}

func (s *Service) definition(name string) (FilterDefinition, bool) {
	def, ok := s.registry[name]
	return def, ok
}
