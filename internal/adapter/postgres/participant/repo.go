// Package participant implements the materialized participant set store.
package participant

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

// Repo provides participant persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
	txm  *postgres.TxManager
}

// New creates a new participant repository.
func New(pool *pgxpool.Pool, txm *postgres.TxManager) *Repo {
	return &Repo{pool: pool, txm: txm}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const deleteByIssueSQL = `
DELETE FROM issue_participants WHERE issue_id = $1`

const insertSetSQL = `
INSERT INTO issue_participants (issue_id, user_id, refreshed_at)
SELECT $1, unnest($2::uuid[]), $3`

const listByIssueIDsSQL = `
SELECT issue_id, user_id, refreshed_at
FROM issue_participants
WHERE issue_id = ANY($1::uuid[])`

const lastRefreshedAtSQL = `
SELECT max(refreshed_at) FROM issue_participants`

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Replace swaps an issue's participant rows for the given set inside one
// transaction, so concurrent readers see either the old set or the new one.
// Must not be called from within an ambient transaction.
func (r *Repo) Replace(ctx context.Context, issueID uuid.UUID, userIDs []uuid.UUID) error {
	return r.txm.RunInTx(ctx, func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, r.pool)

		if _, err := q.Exec(ctx, deleteByIssueSQL, issueID); err != nil {
			return mapError(err, "participants", issueID)
		}
		if len(userIDs) == 0 {
			return nil
		}
		if _, err := q.Exec(ctx, insertSetSQL, issueID, userIDs, time.Now().UTC()); err != nil {
			return mapError(err, "participants", issueID)
		}
		return nil
	})
}

// ListByIssueIDs returns the participant rows of the given issues.
func (r *Repo) ListByIssueIDs(ctx context.Context, issueIDs []uuid.UUID) ([]domain.Participant, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, listByIssueIDsSQL, issueIDs)
	if err != nil {
		return nil, mapError(err, "participants", uuid.Nil)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.IssueID, &p.UserID, &p.RefreshedAt); err != nil {
			return nil, mapError(err, "participants", uuid.Nil)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LastRefreshedAt returns the newest refreshed_at across all rows, or nil
// when no recompute has ever run.
func (r *Repo) LastRefreshedAt(ctx context.Context) (*time.Time, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var latest *time.Time
	if err := q.QueryRow(ctx, lastRefreshedAtSQL).Scan(&latest); err != nil {
		return nil, mapError(err, "participants", uuid.Nil)
	}
	return latest, nil
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
