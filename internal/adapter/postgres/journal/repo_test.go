package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/journal"
	"github.com/dkosarev/trackfilter-backend/internal/adapter/postgres/testhelper"
	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

func newRepo(t *testing.T) (*journal.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return journal.New(pool), pool
}

func TestRepo_Append_AssignsSeq(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	author := testhelper.SeedUser(t, pool)
	is := testhelper.SeedIssue(t, pool, author.ID)

	// Two entries at the same instant still get distinct, increasing seq.
	at := time.Now().UTC().Truncate(time.Microsecond)

	first, err := repo.Append(ctx, domain.JournalEntry{
		ID: uuid.New(), IssueID: is.ID, ActorID: author.ID,
		Field:      domain.FieldStatus,
		OldValue:   testhelper.StrPtr(string(domain.IssueStatusNew)),
		NewValue:   testhelper.StrPtr(string(domain.IssueStatusInProgress)),
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("Append first: unexpected error: %v", err)
	}

	second, err := repo.Append(ctx, domain.JournalEntry{
		ID: uuid.New(), IssueID: is.ID, ActorID: author.ID,
		Field:      domain.FieldStatus,
		OldValue:   testhelper.StrPtr(string(domain.IssueStatusInProgress)),
		NewValue:   testhelper.StrPtr(string(domain.IssueStatusResolved)),
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("Append second: unexpected error: %v", err)
	}

	if second.Seq <= first.Seq {
		t.Fatalf("seq not increasing: first=%d second=%d", first.Seq, second.Seq)
	}
}

func TestRepo_ListByIssueIDs_EventOrder(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	author := testhelper.SeedUser(t, pool)
	is := testhelper.SeedIssue(t, pool, author.ID)

	base := time.Now().UTC().Truncate(time.Microsecond)

	// Seeded out of chronological order on purpose.
	testhelper.SeedJournalEntry(t, pool, is.ID, author.ID, domain.FieldSubject,
		nil, testhelper.StrPtr("later"), base.Add(2*time.Hour))
	testhelper.SeedJournalEntry(t, pool, is.ID, author.ID, domain.FieldSubject,
		nil, testhelper.StrPtr("earlier"), base.Add(time.Hour))

	got, err := repo.ListByIssueIDs(ctx, []uuid.UUID{is.ID})
	if err != nil {
		t.Fatalf("ListByIssueIDs: unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByIssueIDs returned %d entries, want 2", len(got))
	}
	if got[0].NewValue == nil || *got[0].NewValue != "earlier" {
		t.Errorf("first entry = %v, want the chronologically earlier one", got[0].NewValue)
	}
	if !got[0].OccurredAt.Before(got[1].OccurredAt) {
		t.Errorf("entries not in occurred_at order: %v then %v", got[0].OccurredAt, got[1].OccurredAt)
	}
}

func TestRepo_ListByIssueIDs_Empty(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	got, err := repo.ListByIssueIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListByIssueIDs(nil): unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListByIssueIDs(nil) returned %d entries, want 0", len(got))
	}
}

func TestRepo_LatestEntryAt_Advances(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	author := testhelper.SeedUser(t, pool)
	is := testhelper.SeedIssue(t, pool, author.ID)

	// The container is shared across packages, so only assert that the
	// watermark is at least our newest entry.
	at := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	testhelper.SeedJournalEntry(t, pool, is.ID, author.ID, domain.FieldStatus,
		nil, testhelper.StrPtr(string(domain.IssueStatusClosed)), at)

	latest, err := repo.LatestEntryAt(ctx)
	if err != nil {
		t.Fatalf("LatestEntryAt: unexpected error: %v", err)
	}
	if latest == nil {
		t.Fatal("LatestEntryAt = nil, want a timestamp")
	}
	if latest.Before(at) {
		t.Fatalf("LatestEntryAt = %v, want >= %v", latest, at)
	}
}
