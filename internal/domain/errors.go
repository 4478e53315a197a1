package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")

	// ErrUnknownFilter is returned when a query references a filter name
	// that was never registered.
	ErrUnknownFilter = errors.New("unknown filter")

	// ErrInvalidFilter is returned when an operator is not supported by a
	// filter or an operand fails to parse for the filter's value type.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrRecomputeRunning is returned when a participant recompute is
	// requested while another run is still in progress.
	ErrRecomputeRunning = errors.New("participant recompute already running")
)

// UnknownFilterError reports an add-filter call with an unregistered name.
type UnknownFilterError struct {
	Name string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("unknown filter %q", e.Name)
}

func (e *UnknownFilterError) Unwrap() error { return ErrUnknownFilter }

// InvalidFilterError reports an unsupported operator or a malformed operand.
// Raised at AddFilter time so malformed queries fail fast, not at evaluation.
type InvalidFilterError struct {
	Name     string
	Operator FilterOperator
	Reason   string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("filter %q: operator %q: %s", e.Name, e.Operator, e.Reason)
}

func (e *InvalidFilterError) Unwrap() error { return ErrInvalidFilter }
