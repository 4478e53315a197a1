// Package visit implements the per-user issue visit log.
package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/dkosarev/trackfilter-backend/internal/adapter/postgres"
	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// Repo provides visit persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new visit repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

// upsertSQL increments the counter and advances the timestamp in one atomic
// statement. GREATEST keeps last_visited_at monotonic under out-of-order and
// concurrent upserts.
const upsertSQL = `
INSERT INTO issue_visits (issue_id, user_id, last_visited_at, visit_count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (issue_id, user_id) DO UPDATE
SET visit_count     = issue_visits.visit_count + 1,
    last_visited_at = GREATEST(issue_visits.last_visited_at, EXCLUDED.last_visited_at)
RETURNING issue_id, user_id, last_visited_at, visit_count`

const getSQL = `
SELECT issue_id, user_id, last_visited_at, visit_count
FROM issue_visits
WHERE issue_id = $1 AND user_id = $2`

const listByUserSQL = `
SELECT issue_id, user_id, last_visited_at, visit_count
FROM issue_visits
WHERE user_id = $1 AND issue_id = ANY($2::uuid[])`

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Upsert registers one visit of an issue by a user at the given time and
// returns the row after the update.
func (r *Repo) Upsert(ctx context.Context, issueID, userID uuid.UUID, at time.Time) (domain.VisitRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	vr, err := scanVisit(q.QueryRow(ctx, upsertSQL, issueID, userID, at))
	if err != nil {
		return domain.VisitRecord{}, mapError(err, "visit", issueID)
	}
	return vr, nil
}

// Get returns the visit record for (issue, user). domain.ErrNotFound means
// the user has never visited the issue.
func (r *Repo) Get(ctx context.Context, issueID, userID uuid.UUID) (domain.VisitRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	vr, err := scanVisit(q.QueryRow(ctx, getSQL, issueID, userID))
	if err != nil {
		return domain.VisitRecord{}, mapError(err, "visit", issueID)
	}
	return vr, nil
}

// ListByUser returns the user's visit records among the given issues. Issues
// the user never visited have no row and are simply absent.
func (r *Repo) ListByUser(ctx context.Context, userID uuid.UUID, issueIDs []uuid.UUID) ([]domain.VisitRecord, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, listByUserSQL, userID, issueIDs)
	if err != nil {
		return nil, mapError(err, "visit", userID)
	}
	defer rows.Close()

	var out []domain.VisitRecord
	for rows.Next() {
		vr, err := scanVisit(rows)
		if err != nil {
			return nil, mapError(err, "visit", userID)
		}
		out = append(out, vr)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func scanVisit(row pgx.Row) (domain.VisitRecord, error) {
	var vr domain.VisitRecord
	err := row.Scan(&vr.IssueID, &vr.UserID, &vr.LastVisitedAt, &vr.VisitCount)
	if err != nil {
		return domain.VisitRecord{}, err
	}
	return vr, nil
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, entity string, id uuid.UUID) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrValidation)
		}
	}

	return fmt.Errorf("%s %s: %w", entity, id, err)
}
