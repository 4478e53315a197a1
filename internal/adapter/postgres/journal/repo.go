// Package journal implements the append-only field change history store.
package journal

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

// Repo provides journal persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new journal repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const entryColumns = `id, issue_id, actor_id, field, old_value, new_value, occurred_at, seq`

const appendSQL = `
INSERT INTO journal_entries (id, issue_id, actor_id, field, old_value, new_value, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + entryColumns

const listByIssueIDsSQL = `
SELECT ` + entryColumns + `
FROM journal_entries
WHERE issue_id = ANY($1::uuid[])
ORDER BY occurred_at, seq`

const latestEntryAtSQL = `
SELECT max(occurred_at) FROM journal_entries`

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Append records one field change. The database assigns seq; entries sharing
// an occurred_at instant are ordered by it.
func (r *Repo) Append(ctx context.Context, e domain.JournalEntry) (domain.JournalEntry, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	row := q.QueryRow(ctx, appendSQL,
		e.ID, e.IssueID, e.ActorID, e.Field, e.OldValue, e.NewValue, e.OccurredAt)

	out, err := scanEntry(row)
	if err != nil {
		return domain.JournalEntry{}, mapError(err, "journal entry", e.ID)
	}
	return out, nil
}

// ListByIssueIDs returns all entries of the given issues in event order
// (occurred_at, then seq).
func (r *Repo) ListByIssueIDs(ctx context.Context, issueIDs []uuid.UUID) ([]domain.JournalEntry, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, listByIssueIDsSQL, issueIDs)
	if err != nil {
		return nil, mapError(err, "journal entry", uuid.Nil)
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, mapError(err, "journal entry", uuid.Nil)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LatestEntryAt returns the occurred_at of the newest entry, or nil when the
// journal is empty. The participant staleness check compares against it.
func (r *Repo) LatestEntryAt(ctx context.Context) (*time.Time, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var latest *time.Time
	if err := q.QueryRow(ctx, latestEntryAtSQL).Scan(&latest); err != nil {
		return nil, mapError(err, "journal entry", uuid.Nil)
	}
	return latest, nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func scanEntry(row pgx.Row) (domain.JournalEntry, error) {
	var e domain.JournalEntry
	err := row.Scan(&e.ID, &e.IssueID, &e.ActorID, &e.Field,
		&e.OldValue, &e.NewValue, &e.OccurredAt, &e.Seq)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	return e, nil
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
