package domain

import (
	"time"

	"github.com/google/uuid"
)

// Journaled field names. The assignee field gets special treatment in the
// derived calculators (timeline reconstruction, participant aggregation).
const (
	FieldSubject  = "subject"
	FieldStatus   = "status"
	FieldAssignee = "assigned_to"
)

// JournalEntry is a single recorded field mutation with actor and timestamp.
// Entries are append-only; the query core only ever reads them.
//
// Ordering within an issue is by (OccurredAt, Seq): Seq is the insertion
// order and breaks ties between entries written in the same instant.
type JournalEntry struct {
	ID         uuid.UUID
	IssueID    uuid.UUID
	ActorID    uuid.UUID
	Field      string
	OldValue   *string
	NewValue   *string
	OccurredAt time.Time
	Seq        int64
}

// ValueInterval is one segment of a reconstructed field timeline: the field
// held Value during the half-open interval [From, To). To == nil means the
// value is still current.
type ValueInterval struct {
	Value *string
	From  time.Time
	To    *time.Time
}

// Contains reports whether t falls inside the interval.
func (iv ValueInterval) Contains(t time.Time) bool {
	if t.Before(iv.From) {
		return false
	}
	return iv.To == nil || t.Before(*iv.To)
}
