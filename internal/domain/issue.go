package domain

import (
	"time"

	"github.com/google/uuid"
)

// IssueStatus is the workflow state of an issue.
type IssueStatus string

const (
	IssueStatusNew        IssueStatus = "NEW"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
	IssueStatusClosed     IssueStatus = "CLOSED"
)

// Valid reports whether s is one of the known statuses.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusNew, IssueStatusInProgress, IssueStatusResolved, IssueStatusClosed:
		return true
	}
	return false
}

// Issue is the stored side of a tracked record. The journal holds its
// field-level change history; derived filters never read history from here.
type Issue struct {
	ID         uuid.UUID
	Project    string
	Subject    string
	Status     IssueStatus
	AuthorID   uuid.UUID
	AssigneeID *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GroupDimension names a stored column issues can be grouped by.
type GroupDimension string

const (
	GroupByStatus   GroupDimension = "status"
	GroupByProject  GroupDimension = "project"
	GroupByAuthor   GroupDimension = "author"
	GroupByAssignee GroupDimension = "assignee"
)

// Valid reports whether d is a known group dimension.
func (d GroupDimension) Valid() bool {
	switch d {
	case GroupByStatus, GroupByProject, GroupByAuthor, GroupByAssignee:
		return true
	}
	return false
}
