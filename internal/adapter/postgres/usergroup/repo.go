// Package usergroup implements the principal directory: users, groups, and
// group membership. The query engine uses it to expand principal operands.
package usergroup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/dkosarev/trackfilter-backend/internal/adapter/postgres"
	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// Repo provides user and group persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new user/group repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// Raw SQL
// ---------------------------------------------------------------------------

const createUserSQL = `
INSERT INTO users (id, login, created_at)
VALUES ($1, $2, $3)
RETURNING id, login, created_at`

const getUserSQL = `
SELECT id, login, created_at FROM users WHERE id = $1`

const createGroupSQL = `
INSERT INTO groups (id, name)
VALUES ($1, $2)
RETURNING id, name`

const addMemberSQL = `
INSERT INTO group_members (group_id, user_id)
VALUES ($1, $2)
ON CONFLICT (group_id, user_id) DO NOTHING`

const groupMembersSQL = `
SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY user_id`

const groupExistsSQL = `
SELECT EXISTS(SELECT 1 FROM groups WHERE id = $1)`

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// CreateUser inserts a user account.
func (r *Repo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out domain.User
	err := q.QueryRow(ctx, createUserSQL, u.ID, u.Login, u.CreatedAt).
		Scan(&out.ID, &out.Login, &out.CreatedAt)
	if err != nil {
		return domain.User{}, mapError(err, "user", u.ID)
	}
	return out, nil
}

// GetUser returns a user by id.
func (r *Repo) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out domain.User
	err := q.QueryRow(ctx, getUserSQL, id).Scan(&out.ID, &out.Login, &out.CreatedAt)
	if err != nil {
		return domain.User{}, mapError(err, "user", id)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

// CreateGroup inserts a group.
func (r *Repo) CreateGroup(ctx context.Context, g domain.Group) (domain.Group, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var out domain.Group
	err := q.QueryRow(ctx, createGroupSQL, g.ID, g.Name).Scan(&out.ID, &out.Name)
	if err != nil {
		return domain.Group{}, mapError(err, "group", g.ID)
	}
	return out, nil
}

// AddMember adds a user to a group. Adding an existing member is a no-op.
func (r *Repo) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	if _, err := q.Exec(ctx, addMemberSQL, groupID, userID); err != nil {
		return mapError(err, "group member", groupID)
	}
	return nil
}

// ExpandPrincipal resolves a principal id to concrete user ids: a group id
// expands to its direct members, anything else to itself. Ids absent from
// the directory still expand to themselves so filters can match historical
// journal actors.
func (r *Repo) ExpandPrincipal(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var isGroup bool
	if err := q.QueryRow(ctx, groupExistsSQL, id).Scan(&isGroup); err != nil {
		return nil, mapError(err, "principal", id)
	}
	if !isGroup {
		return []uuid.UUID{id}, nil
	}

	rows, err := q.Query(ctx, groupMembersSQL, id)
	if err != nil {
		return nil, mapError(err, "principal", id)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var member uuid.UUID
		if err := rows.Scan(&member); err != nil {
			return nil, mapError(err, "principal", id)
		}
		out = append(out, member)
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
