package domain

import (
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FilterOperator is one of the recognized comparison operators. Not every
// filter supports every operator; the registry validates at AddFilter time.
type FilterOperator string

const (
	// OpEquals matches when the attribute equals one of the operands.
	OpEquals FilterOperator = "="
	// OpNone matches records for which the attribute is inapplicable or
	// never true — not mere negation of OpEquals matches.
	OpNone FilterOperator = "!*"
	// OpAny matches records for which the attribute is applicable.
	OpAny FilterOperator = "*"
	// OpToday applies "today" as the comparison instant.
	OpToday FilterOperator = "t"
)

// FilterValueType determines how operands are parsed and which operators
// make sense for a filter.
type FilterValueType string

const (
	ValueTypeDate FilterValueType = "date"
	ValueTypeInt  FilterValueType = "int"
	ValueTypeUser FilterValueType = "user"
	ValueTypeEnum FilterValueType = "enum"
)

// DateLayout is the wire format for date operands.
const DateLayout = "2006-01-02"

// ParseDateOperand parses a YYYY-MM-DD operand in the given location.
func ParseDateOperand(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// ParseIntOperand parses a non-negative integer operand.
func ParseIntOperand(s string) (int, error) {
	return strconv.Atoi(s)
}

// UserRef is a parsed user-type operand: either the "me" keyword or a
// concrete principal id (user or group).
type UserRef struct {
	Me bool
	ID uuid.UUID
}

// ParseUserOperand parses a user-type operand: "me" or a principal UUID.
func ParseUserOperand(s string) (UserRef, error) {
	if s == MeOperand {
		return UserRef{Me: true}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return UserRef{}, err
	}
	return UserRef{ID: id}, nil
}

// StoredCondition is a stored-field predicate delegated to the record
// store, which compiles it into its own physical query.
type StoredCondition struct {
	Column string
	Op     FilterOperator
	Values []string
}

// OperatorSupported reports whether op is in the supported set.
func OperatorSupported(op FilterOperator, supported []FilterOperator) bool {
	return slices.Contains(supported, op)
}
