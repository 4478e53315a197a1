package domain

import (
	"time"

	"github.com/google/uuid"
)

// VisitRecord tracks how often and how recently a user opened an issue.
// One row per (issue, user) pair, upserted on every visit. LastVisitedAt is
// "latest timestamp seen", not "most recent call": an out-of-order visit
// with an earlier timestamp never moves it backward.
type VisitRecord struct {
	IssueID       uuid.UUID
	UserID        uuid.UUID
	LastVisitedAt time.Time
	VisitCount    int
}
