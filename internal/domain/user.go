package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a minimal account shape; identity management lives elsewhere.
type User struct {
	ID        uuid.UUID
	Login     string
	CreatedAt time.Time
}

// Group is a named set of users. Filters that accept a principal operand
// (updated_by) expand a group id to its direct members.
type Group struct {
	ID   uuid.UUID
	Name string
}

// MeOperand is the filter operand that resolves to the acting user at
// evaluation time. Resolution uses only the caller-supplied context, never
// stored field values.
const MeOperand = "me"
