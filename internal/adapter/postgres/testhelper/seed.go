package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedUser creates a user with a unique login and returns it.
func SeedUser(t *testing.T, pool *pgxpool.Pool) domain.User {
	t.Helper()
	ctx := context.Background()

	u := domain.User{
		ID:        uuid.New(),
		Login:     "user-" + uniqueSuffix(),
		CreatedAt: time.Now().UTC(),
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, login, created_at) VALUES ($1, $2, $3)`,
		u.ID, u.Login, u.CreatedAt)
	if err != nil {
		t.Fatalf("testhelper: seed user: %v", err)
	}
	return u
}

// SeedGroup creates a group with the given members.
func SeedGroup(t *testing.T, pool *pgxpool.Pool, members ...uuid.UUID) domain.Group {
	t.Helper()
	ctx := context.Background()

	g := domain.Group{
		ID:   uuid.New(),
		Name: "group-" + uniqueSuffix(),
	}

	if _, err := pool.Exec(ctx,
		`INSERT INTO groups (id, name) VALUES ($1, $2)`, g.ID, g.Name); err != nil {
		t.Fatalf("testhelper: seed group: %v", err)
	}
	for _, m := range members {
		if _, err := pool.Exec(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, g.ID, m); err != nil {
			t.Fatalf("testhelper: seed group member: %v", err)
		}
	}
	return g
}

// SeedIssue creates an issue authored by authorID. Optional mutators adjust
// the row before insert.
func SeedIssue(t *testing.T, pool *pgxpool.Pool, authorID uuid.UUID, mutate ...func(*domain.Issue)) domain.Issue {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	is := domain.Issue{
		ID:        uuid.New(),
		Project:   "proj-" + uniqueSuffix(),
		Subject:   "subject " + uniqueSuffix(),
		Status:    domain.IssueStatusNew,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, fn := range mutate {
		fn(&is)
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO issues (id, project, subject, status, author_id, assignee_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		is.ID, is.Project, is.Subject, is.Status, is.AuthorID, is.AssigneeID, is.CreatedAt, is.UpdatedAt)
	if err != nil {
		t.Fatalf("testhelper: seed issue: %v", err)
	}
	return is
}

// SeedJournalEntry appends a field change to an issue's journal and returns
// the stored entry including its database-assigned seq.
func SeedJournalEntry(t *testing.T, pool *pgxpool.Pool, issueID, actorID uuid.UUID, field string, oldValue, newValue *string, occurredAt time.Time) domain.JournalEntry {
	t.Helper()
	ctx := context.Background()

	e := domain.JournalEntry{
		ID:         uuid.New(),
		IssueID:    issueID,
		ActorID:    actorID,
		Field:      field,
		OldValue:   oldValue,
		NewValue:   newValue,
		OccurredAt: occurredAt,
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO journal_entries (id, issue_id, actor_id, field, old_value, new_value, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING seq`,
		e.ID, e.IssueID, e.ActorID, e.Field, e.OldValue, e.NewValue, e.OccurredAt).Scan(&e.Seq)
	if err != nil {
		t.Fatalf("testhelper: seed journal entry: %v", err)
	}
	return e
}

// StrPtr returns a pointer to s. Journal old/new values are nullable.
func StrPtr(s string) *string {
	return &s
}
