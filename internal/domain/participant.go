package domain

import (
	"time"

	"github.com/google/uuid"
)

// Participant marks a user as having taken part in an issue: authored it,
// wrote a journal entry on it, or held its assignee field at any point.
//
// Rows are materialized by the bulk recompute and are only as fresh as the
// last run; queries against a stale set silently return outdated results.
type Participant struct {
	IssueID     uuid.UUID
	UserID      uuid.UUID
	RefreshedAt time.Time
}
