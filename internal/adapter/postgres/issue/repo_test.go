package issue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/issue"
	"github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/testhelper"
	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// newRepo sets up a test DB and returns a ready Repo + pool.
func newRepo(t *testing.T) (*issue.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return issue.New(pool), pool
}

// ---------------------------------------------------------------------------
// Create + GetByID
// ---------------------------------------------------------------------------

func TestRepo_Create_AndGetByID(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	author := testhelper.SeedUser(t, pool)
	assignee := testhelper.SeedUser(t, pool)

	in := domain.Issue{
		ID:         uuid.New(),
		Project:    "billing",
		Subject:    "invoice totals drift",
		Status:     domain.IssueStatusNew,
		AuthorID:   author.ID,
		AssigneeID: &assignee.ID,
	}

	created, err := repo.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	if created.ID != in.ID {
		t.Errorf("ID mismatch: got %s, want %s", created.ID, in.ID)
	}
	if created.AssigneeID == nil || *created.AssigneeID != assignee.ID {
		t.Errorf("AssigneeID mismatch: got %v, want %s", created.AssigneeID, assignee.ID)
	}

	got, err := repo.GetByID(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetByID: unexpected error: %v", err)
	}
	if got.Subject != in.Subject {
		t.Errorf("Subject mismatch: got %q, want %q", got.Subject, in.Subject)
	}
	if got.Status != domain.IssueStatusNew {
		t.Errorf("Status mismatch: got %s, want %s", got.Status, domain.IssueStatusNew)
	}
}

func TestRepo_GetByID_NotFound(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID(missing) = %v, want ErrNotFound", err)
	}
}

func TestRepo_Create_UnknownAuthor(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	_, err := repo.Create(context.Background(), domain.Issue{
		ID:       uuid.New(),
		Project:  "billing",
		Subject:  "orphan",
		Status:   domain.IssueStatusNew,
		AuthorID: uuid.New(), // not in users
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Create with unknown author = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Scope
// ---------------------------------------------------------------------------

func TestRepo_Scope_StoredConditions(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	author := testhelper.SeedUser(t, pool)
	assignee := testhelper.SeedUser(t, pool)
	project := "scope-" + uuid.New().String()[:8]

	open := testhelper.SeedIssue(t, pool, author.ID, func(is *domain.Issue) {
		is.Project = project
		is.Status = domain.IssueStatusNew
		is.AssigneeID = &assignee.ID
	})
	closed := testhelper.SeedIssue(t, pool, author.ID, func(is *domain.Issue) {
		is.Project = project
		is.Status = domain.IssueStatusClosed
	})

	// Equality on project narrows to the two seeded issues.
	ids, err := repo.Scope(ctx, []domain.StoredCondition{
		{Column: "project", Op: domain.OpEquals, Values: []string{project}},
	})
	if err != nil {
		t.Fatalf("Scope(project): unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Scope(project) returned %d ids, want 2", len(ids))
	}

	// Adding a status condition narrows further.
	ids, err = repo.Scope(ctx, []domain.StoredCondition{
		{Column: "project", Op: domain.OpEquals, Values: []string{project}},
		{Column: "status", Op: domain.OpEquals, Values: []string{string(domain.IssueStatusClosed)}},
	})
	if err != nil {
		t.Fatalf("Scope(project+status): unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != closed.ID {
		t.Fatalf("Scope(project+status) = %v, want [%s]", ids, closed.ID)
	}

	// OpAny / OpNone on assignee.
	ids, err = repo.Scope(ctx, []domain.StoredCondition{
		{Column: "project", Op: domain.OpEquals, Values: []string{project}},
		{Column: "assignee_id", Op: domain.OpAny},
	})
	if err != nil {
		t.Fatalf("Scope(assignee any): unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != open.ID {
		t.Fatalf("Scope(assignee any) = %v, want [%s]", ids, open.ID)
	}

	ids, err = repo.Scope(ctx, []domain.StoredCondition{
		{Column: "project", Op: domain.OpEquals, Values: []string{project}},
		{Column: "assignee_id", Op: domain.OpNone},
	})
	if err != nil {
		t.Fatalf("Scope(assignee none): unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != closed.ID {
		t.Fatalf("Scope(assignee none) = %v, want [%s]", ids, closed.ID)
	}
}

func TestRepo_Scope_UnsupportedOperator(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	_, err := repo.Scope(context.Background(), []domain.StoredCondition{
		{Column: "status", Op: domain.OpToday},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Scope(today on stored column) = %v, want ErrValidation", err)
	}
}

// ---------------------------------------------------------------------------
// ListByIDs + GroupKeys
// ---------------------------------------------------------------------------

func TestRepo_ListByIDs_Empty(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	got, err := repo.ListByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListByIDs(nil): unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListByIDs(nil) returned %d issues, want 0", len(got))
	}
}

func TestRepo_GroupKeys(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	author := testhelper.SeedUser(t, pool)
	assignee := testhelper.SeedUser(t, pool)

	assigned := testhelper.SeedIssue(t, pool, author.ID, func(is *domain.Issue) {
		is.AssigneeID = &assignee.ID
	})
	unassigned := testhelper.SeedIssue(t, pool, author.ID)

	keys, err := repo.GroupKeys(ctx, []uuid.UUID{assigned.ID, unassigned.ID}, domain.GroupByAssignee)
	if err != nil {
		t.Fatalf("GroupKeys(assignee): unexpected error: %v", err)
	}
	if keys[assigned.ID] != assignee.ID.String() {
		t.Errorf("assigned key = %q, want %q", keys[assigned.ID], assignee.ID.String())
	}
	if keys[unassigned.ID] != "" {
		t.Errorf("unassigned key = %q, want empty", keys[unassigned.ID])
	}

	keys, err = repo.GroupKeys(ctx, []uuid.UUID{assigned.ID}, domain.GroupByStatus)
	if err != nil {
		t.Fatalf("GroupKeys(status): unexpected error: %v", err)
	}
	if keys[assigned.ID] != string(domain.IssueStatusNew) {
		t.Errorf("status key = %q, want %q", keys[assigned.ID], domain.IssueStatusNew)
	}

	if _, err := repo.GroupKeys(ctx, []uuid.UUID{assigned.ID}, domain.GroupDimension("priority")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("GroupKeys(unknown dim) = %v, want ErrValidation", err)
	}
}
