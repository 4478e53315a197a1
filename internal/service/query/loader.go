package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

const (
	loaderMaxBatch = 100
	loaderWait     = 2 * time.Millisecond
)

// journalLoader batches per-issue journal reads of one evaluation into
// ListByIssueIDs calls. Created per evaluation; the loader cache then makes
// repeated reads by different derived filters free.
type journalLoader struct {
	loader *dataloader.Loader[uuid.UUID, []domain.JournalEntry]
}

func newJournalLoader(repo journalRepo) *journalLoader {
	batchFn := func(ctx context.Context, issueIDs []uuid.UUID) []*dataloader.Result[[]domain.JournalEntry] {
		results := make([]*dataloader.Result[[]domain.JournalEntry], len(issueIDs))

		entries, err := repo.ListByIssueIDs(ctx, issueIDs)
		if err != nil {
			err = fmt.Errorf("list journal entries: %w", err)
			for i := range results {
				results[i] = &dataloader.Result[[]domain.JournalEntry]{Error: err}
			}
			return results
		}

		byIssue := make(map[uuid.UUID][]domain.JournalEntry, len(issueIDs))
		for _, e := range entries {
			byIssue[e.IssueID] = append(byIssue[e.IssueID], e)
		}

		for i, id := range issueIDs {
			sorted := byIssue[id]
			sortEntries(sorted)
			results[i] = &dataloader.Result[[]domain.JournalEntry]{Data: sorted}
		}
		return results
	}

	return &journalLoader{
		loader: dataloader.NewBatchedLoader(
			batchFn,
			dataloader.WithWait[uuid.UUID, []domain.JournalEntry](loaderWait),
			dataloader.WithBatchCapacity[uuid.UUID, []domain.JournalEntry](loaderMaxBatch),
		),
	}
}

// loadAll resolves the journals of every issue in ids, keyed by issue.
func (l *journalLoader) loadAll(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.JournalEntry, error) {
	thunk := l.loader.LoadMany(ctx, ids)
	entries, errs := thunk()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	out := make(map[uuid.UUID][]domain.JournalEntry, len(ids))
	for i, id := range ids {
		out[id] = entries[i]
	}
	return out, nil
}
