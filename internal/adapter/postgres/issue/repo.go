// Package issue implements the issue repository using PostgreSQL.
// Fixed-shape queries use raw SQL; the stored-filter scope is assembled
// dynamically with squirrel.
package issue

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/dkosarev/trackfilter-backend/internal/adapter/postgres"
	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// Repo provides issue persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new issue repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const issueColumns = `id, project, subject, status, author_id, assignee_id, created_at, updated_at`

const createSQL = `
INSERT INTO issues (id, project, subject, status, author_id, assignee_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING ` + issueColumns

const getByIDSQL = `
SELECT ` + issueColumns + `
FROM issues
WHERE id = $1`

const listIDsSQL = `
SELECT id FROM issues ORDER BY created_at, id`

const listByIDsSQL = `
SELECT ` + issueColumns + `
FROM issues
WHERE id = ANY($1::uuid[])
ORDER BY created_at, id`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts an issue and returns the stored row.
func (r *Repo) Create(ctx context.Context, is domain.Issue) (domain.Issue, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	row := q.QueryRow(ctx, createSQL,
		is.ID, is.Project, is.Subject, is.Status, is.AuthorID, is.AssigneeID, is.CreatedAt)

	out, err := scanIssue(row)
	if err != nil {
		return domain.Issue{}, mapError(err, "issue", is.ID)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns an issue by primary key.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.Issue, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	out, err := scanIssue(q.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return domain.Issue{}, mapError(err, "issue", id)
	}
	return out, nil
}

// ListIDs returns every issue id in creation order.
func (r *Repo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, listIDsSQL)
	if err != nil {
		return nil, mapError(err, "issue", uuid.Nil)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// ListByIDs returns the issues with the given ids in creation order. Missing
// ids are skipped, not an error.
func (r *Repo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Issue, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, listByIDsSQL, ids)
	if err != nil {
		return nil, mapError(err, "issue", uuid.Nil)
	}
	defer rows.Close()

	var out []domain.Issue
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			return nil, mapError(err, "issue", uuid.Nil)
		}
		out = append(out, is)
	}
	return out, rows.Err()
}

// Scope returns the ids of issues satisfying every stored-field condition.
// With no conditions the full issue set is returned. Column names come from
// the filter registry, never from user input.
func (r *Repo) Scope(ctx context.Context, conds []domain.StoredCondition) ([]uuid.UUID, error) {
	builder := sq.Select("id").From("issues").PlaceholderFormat(sq.Dollar)

	for _, c := range conds {
		switch c.Op {
		case domain.OpEquals:
			builder = builder.Where(sq.Eq{c.Column: c.Values})
		case domain.OpNone:
			builder = builder.Where(sq.Eq{c.Column: nil})
		case domain.OpAny:
			builder = builder.Where(sq.NotEq{c.Column: nil})
		default:
			return nil, fmt.Errorf("stored condition on %q: operator %q: %w",
				c.Column, c.Op, domain.ErrValidation)
		}
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scope query: %w", err)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError(err, "issue", uuid.Nil)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// GroupKeys resolves the grouping key of each given issue for a dimension.
// A missing assignee maps to the empty key.
func (r *Repo) GroupKeys(ctx context.Context, ids []uuid.UUID, dim domain.GroupDimension) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}

	expr, ok := groupExpr[dim]
	if !ok {
		return nil, fmt.Errorf("group dimension %q: %w", dim, domain.ErrValidation)
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := q.Query(ctx,
		`SELECT id, `+expr+` FROM issues WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, mapError(err, "issue", uuid.Nil)
	}
	defer rows.Close()

	keys := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			return nil, mapError(err, "issue", uuid.Nil)
		}
		keys[id] = key
	}
	return keys, rows.Err()
}

// groupExpr maps a group dimension to its SQL key expression.
var groupExpr = map[domain.GroupDimension]string{
	domain.GroupByStatus:   `status`,
	domain.GroupByProject:  `project`,
	domain.GroupByAuthor:   `author_id::text`,
	domain.GroupByAssignee: `COALESCE(assignee_id::text, '')`,
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func scanIssue(row pgx.Row) (domain.Issue, error) {
	var is domain.Issue
	err := row.Scan(&is.ID, &is.Project, &is.Subject, &is.Status,
		&is.AuthorID, &is.AssigneeID, &is.CreatedAt, &is.UpdatedAt)
	if err != nil {
		return domain.Issue{}, err
	}
	return is, nil
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
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
