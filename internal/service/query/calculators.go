package query

import (
	"time"

	"github.com/google/uuid"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Derived attribute calculators
//
// Each calculator is a pure function of (issue, its journal, acting user,
// timezone) producing the set of dates on which the attribute holds. An
// empty set means the attribute never applies to the issue for this user,
// which is exactly what the "!*" operator matches.
// ---------------------------------------------------------------------------

// dateSet holds day keys in domain.DateLayout format.
type dateSet map[string]struct{}

func (s dateSet) add(t time.Time, loc *time.Location) {
	s[dayKey(t, loc)] = struct{}{}
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(domain.DateLayout)
}

// createdByMeOn yields the creation date iff the issue's author is the
// acting user.
func createdByMeOn(issue domain.Issue, user uuid.UUID, loc *time.Location) dateSet {
	days := dateSet{}
	if issue.AuthorID == user {
		days.add(issue.CreatedAt, loc)
	}
	return days
}

// updatedByMeOn yields every date the acting user authored a journal entry
// on the issue. Entries by other actors are ignored even when interleaved
// with the user's own edits.
func updatedByMeOn(entries []domain.JournalEntry, user uuid.UUID, loc *time.Location) dateSet {
	days := dateSet{}
	for _, e := range entries {
		if e.ActorID == user {
			days.add(e.OccurredAt, loc)
		}
	}
	return days
}

// assignedToMeOn yields every date the issue became assigned to the acting
// user: each assignee change handing it over, plus the creation date when
// the issue was born already assigned to them.
func assignedToMeOn(issue domain.Issue, entries []domain.JournalEntry, user uuid.UUID, loc *time.Location) dateSet {
	days := dateSet{}
	me := user.String()

	tl := assigneeTimeline(issue, entries)
	if v := tl[0].Value; v != nil && *v == me {
		days.add(issue.CreatedAt, loc)
	}

	for _, e := range fieldEntries(entries, domain.FieldAssignee) {
		if e.NewValue != nil && *e.NewValue == me {
			days.add(e.OccurredAt, loc)
		}
	}
	return days
}

// unassignedFromMeOn yields every date an assignee change took the issue
// away from the acting user, including changes to unassigned.
func unassignedFromMeOn(entries []domain.JournalEntry, user uuid.UUID, loc *time.Location) dateSet {
	days := dateSet{}
	me := user.String()
	for _, e := range fieldEntries(entries, domain.FieldAssignee) {
		if e.OldValue == nil || *e.OldValue != me {
			continue
		}
		if e.NewValue == nil || *e.NewValue != me {
			days.add(e.OccurredAt, loc)
		}
	}
	return days
}

// assigneeTimeline reconstructs the assignee field's intervals. The initial
// value comes from the first assignee entry's old value, or from the stored
// assignee when the field was never journaled.
func assigneeTimeline(issue domain.Issue, entries []domain.JournalEntry) []domain.ValueInterval {
	assigneeEntries := fieldEntries(entries, domain.FieldAssignee)

	var initial *string
	if len(assigneeEntries) > 0 {
		initial = assigneeEntries[0].OldValue
	} else if issue.AssigneeID != nil {
		s := issue.AssigneeID.String()
		initial = &s
	}

	return buildTimeline(initial, issue.CreatedAt, assigneeEntries)
}

// updatedWhenAssigneeOn yields every date some journal entry (any actor, any
// field) occurred while the reconstructed assignee at that entry's timestamp
// was the acting user.
func updatedWhenAssigneeOn(issue domain.Issue, entries []domain.JournalEntry, user uuid.UUID, loc *time.Location) dateSet {
	days := dateSet{}
	tl := assigneeTimeline(issue, entries)
	me := user.String()

	for _, e := range entries {
		v, ok := valueAt(tl, e.OccurredAt)
		if ok && v != nil && *v == me {
			days.add(e.OccurredAt, loc)
		}
	}
	return days
}

// updatedAfterAssigneeOn yields every date of a journal entry that occurred
// once the acting user was no longer assignee: the assignee at the entry's
// timestamp is someone else, and the user held the field in an interval that
// ended at or before the entry. Mutually exclusive with the "when assignee"
// classification for any given entry.
func updatedAfterAssigneeOn(issue domain.Issue, entries []domain.JournalEntry, user uuid.UUID, loc *time.Location) dateSet {
	days := dateSet{}
	tl := assigneeTimeline(issue, entries)
	me := user.String()

	held := intervalsWhere(tl, func(v *string) bool {
		return v != nil && *v == me
	})
	if len(held) == 0 {
		return days
	}

	for _, e := range entries {
		v, ok := valueAt(tl, e.OccurredAt)
		if ok && v != nil && *v == me {
			continue // classified as "while assignee"
		}
		for _, iv := range held {
			if iv.To != nil && !iv.To.After(e.OccurredAt) {
				days.add(e.OccurredAt, loc)
				break
			}
		}
	}
	return days
}
