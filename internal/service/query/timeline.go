package query

import (
	"sort"
	"time"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Temporal reconstruction
// ---------------------------------------------------------------------------

// sortEntries orders journal entries by (occurred_at, seq) ascending.
// Seq reproduces insertion order for entries written in the same instant.
func sortEntries(entries []domain.JournalEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].OccurredAt.Before(entries[j].OccurredAt)
	})
}

// fieldEntries returns the sorted subset of entries touching one field.
func fieldEntries(entries []domain.JournalEntry, field string) []domain.JournalEntry {
	var out []domain.JournalEntry
	for _, e := range entries {
		if e.Field == field {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out
}

// buildTimeline reconstructs the value-holding intervals of one field from
// its sorted journal entries. The first interval starts at createdAt with
// initial (the first entry's old value, or the stored current value when the
// field was never journaled). Each entry closes the previous interval at its
// occurred_at and opens a new one with its new value; the last interval is
// open-ended. Intervals are contiguous and non-overlapping by construction.
func buildTimeline(initial *string, createdAt time.Time, entries []domain.JournalEntry) []domain.ValueInterval {
	intervals := make([]domain.ValueInterval, 0, len(entries)+1)
	cur := domain.ValueInterval{Value: initial, From: createdAt}

	for _, e := range entries {
		at := e.OccurredAt
		cur.To = &at
		intervals = append(intervals, cur)
		cur = domain.ValueInterval{Value: e.NewValue, From: at}
	}

	intervals = append(intervals, cur)
	return intervals
}

// valueAt returns the field value holding at t, using binary search over the
// half-open intervals. ok is false when t precedes the record's lifetime.
// For several entries sharing one timestamp the zero-width intervals between
// them are skipped, so the value at that instant is the one after the last
// of the tied entries.
func valueAt(intervals []domain.ValueInterval, t time.Time) (value *string, ok bool) {
	i := sort.Search(len(intervals), func(i int) bool {
		return intervals[i].From.After(t)
	})
	// i is the first interval starting after t; the candidate is the one
	// before it. Ties on From resolve to the rightmost interval.
	if i == 0 {
		return nil, false
	}
	iv := intervals[i-1]
	if !iv.Contains(t) {
		return nil, false
	}
	return iv.Value, true
}

// intervalsWhere returns, in order, the intervals whose value satisfies
// pred. Zero-width intervals (superseded in the same instant) are dropped.
func intervalsWhere(intervals []domain.ValueInterval, pred func(*string) bool) []domain.ValueInterval {
	var out []domain.ValueInterval
	for _, iv := range intervals {
		if iv.To != nil && !iv.From.Before(*iv.To) {
			continue
		}
		if pred(iv.Value) {
			out = append(out, iv)
		}
	}
	return out
}
