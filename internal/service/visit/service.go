// Package visit implements issue visit tracking: an upsert-per-view counter
// feeding the last_visit_on and visit_count filters.
package visit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

type visitRepo interface {
	// Upsert atomically increments the visit counter for (issue, user) and
	// advances last_visited_at to at when later than the stored value.
	Upsert(ctx context.Context, issueID, userID uuid.UUID, at time.Time) (domain.VisitRecord, error)
}

// Service records issue visits.
type Service struct {
	visits visitRepo
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates the visit service.
func NewService(log *slog.Logger, visits visitRepo) *Service {
	return &Service{
		visits: visits,
		log:    log,
		now:    time.Now,
	}
}

// RecordVisit registers one view of an issue by a user. A zero at means
// "now". The counter only grows and last_visited_at never moves backward,
// regardless of call order.
func (s *Service) RecordVisit(ctx context.Context, issueID, userID uuid.UUID, at time.Time) (domain.VisitRecord, error) {
	if issueID == uuid.Nil {
		return domain.VisitRecord{}, fmt.Errorf("issue id is required: %w", domain.ErrValidation)
	}
	if userID == uuid.Nil {
		return domain.VisitRecord{}, fmt.Errorf("user id is required: %w", domain.ErrValidation)
	}
	if at.IsZero() {
		at = s.now()
	}

	vr, err := s.visits.Upsert(ctx, issueID, userID, at)
	if err != nil {
		return domain.VisitRecord{}, fmt.Errorf("record visit: %w", err)
	}

	s.log.DebugContext(ctx, "visit recorded",
		slog.String("issue_id", issueID.String()),
		slog.String("user_id", userID.String()),
		slog.Int("visit_count", vr.VisitCount),
	)

	return vr, nil
}
