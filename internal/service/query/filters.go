package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Filter definitions
//
// Every filter name resolves to exactly one implementation at startup; there
// is no runtime type inspection beyond the stored/derived partition.
// ---------------------------------------------------------------------------

// FilterDefinition describes one registered filter: its operand domain and
// the operators it accepts.
type FilterDefinition interface {
	Name() string
	ValueType() domain.FilterValueType
	Operators() []domain.FilterOperator
}

// storedFilter delegates to the issue store as a plain column predicate.
// A non-nil enum restricts the accepted operand values.
type storedFilter struct {
	name   string
	column string
	vt     domain.FilterValueType
	ops    []domain.FilterOperator
	enum   []string
}

func (f storedFilter) Name() string                       { return f.name }
func (f storedFilter) ValueType() domain.FilterValueType  { return f.vt }
func (f storedFilter) Operators() []domain.FilterOperator { return f.ops }

// derivedFilter is evaluated by the core from journal/visit/participant data.
type derivedFilter struct {
	name string
	vt   domain.FilterValueType
	ops  []domain.FilterOperator
	eval evalFunc
}

func (f derivedFilter) Name() string                       { return f.name }
func (f derivedFilter) ValueType() domain.FilterValueType  { return f.vt }
func (f derivedFilter) Operators() []domain.FilterOperator { return f.ops }

type evalFunc func(ctx context.Context, ev *evaluation, c clause) (idSet, error)

// Built-in filter names.
const (
	FilterStatus     = "status"
	FilterProject    = "project"
	FilterAuthor     = "author"
	FilterAssignedTo = "assigned_to"

	FilterCreatedByMeOn          = "created_by_me_on"
	FilterUpdatedByMeOn          = "updated_by_me_on"
	FilterAssignedToMeOn         = "assigned_to_me_on"
	FilterUnassignedFromMeOn     = "unassigned_from_me_on"
	FilterUpdatedWhenAssigneeOn  = "updated_when_i_was_assignee_on"
	FilterUpdatedAfterAssigneeOn = "updated_after_i_was_assignee_on"

	FilterLastVisitOn = "last_visit_on"
	FilterVisitCount  = "visit_count"
	FilterUpdatedBy   = "updated_by"
	FilterParticipant = "participant"
)

func (s *Service) registerBuiltins() error {
	dateOps := []domain.FilterOperator{domain.OpEquals, domain.OpToday, domain.OpAny, domain.OpNone}

	defs := []FilterDefinition{
		storedFilter{name: FilterStatus, column: "status", vt: domain.ValueTypeEnum,
			ops:  []domain.FilterOperator{domain.OpEquals},
			enum: []string{
				string(domain.IssueStatusNew),
				string(domain.IssueStatusInProgress),
				string(domain.IssueStatusResolved),
				string(domain.IssueStatusClosed),
			}},
		storedFilter{name: FilterProject, column: "project", vt: domain.ValueTypeEnum,
			ops: []domain.FilterOperator{domain.OpEquals}},
		storedFilter{name: FilterAuthor, column: "author_id", vt: domain.ValueTypeUser,
			ops: []domain.FilterOperator{domain.OpEquals}},
		storedFilter{name: FilterAssignedTo, column: "assignee_id", vt: domain.ValueTypeUser,
			ops: []domain.FilterOperator{domain.OpEquals, domain.OpAny, domain.OpNone}},

		derivedFilter{name: FilterCreatedByMeOn, vt: domain.ValueTypeDate, ops: dateOps,
			eval: evalDateCalc(func(issue domain.Issue, _ []domain.JournalEntry, user uuid.UUID, loc *time.Location) dateSet {
				return createdByMeOn(issue, user, loc)
			})},
		derivedFilter{name: FilterUpdatedByMeOn, vt: domain.ValueTypeDate, ops: dateOps,
			eval: evalDateCalc(func(_ domain.Issue, entries []domain.JournalEntry, user uuid.UUID, loc *time.Location) dateSet {
				return updatedByMeOn(entries, user, loc)
			})},
		derivedFilter{name: FilterAssignedToMeOn, vt: domain.ValueTypeDate, ops: dateOps,
			eval: evalDateCalc(assignedToMeOn)},
		derivedFilter{name: FilterUnassignedFromMeOn, vt: domain.ValueTypeDate, ops: dateOps,
			eval: evalDateCalc(func(_ domain.Issue, entries []domain.JournalEntry, user uuid.UUID, loc *time.Location) dateSet {
				return unassignedFromMeOn(entries, user, loc)
			})},
		derivedFilter{name: FilterUpdatedWhenAssigneeOn, vt: domain.ValueTypeDate, ops: dateOps,
			eval: evalDateCalc(updatedWhenAssigneeOn)},
		derivedFilter{name: FilterUpdatedAfterAssigneeOn, vt: domain.ValueTypeDate, ops: dateOps,
			eval: evalDateCalc(updatedAfterAssigneeOn)},

		derivedFilter{name: FilterLastVisitOn, vt: domain.ValueTypeDate, ops: dateOps,
			eval: evalLastVisitOn},
		derivedFilter{name: FilterVisitCount, vt: domain.ValueTypeInt,
			ops:  []domain.FilterOperator{domain.OpEquals, domain.OpAny, domain.OpNone},
			eval: evalVisitCount},
		derivedFilter{name: FilterUpdatedBy, vt: domain.ValueTypeUser,
			ops:  []domain.FilterOperator{domain.OpEquals},
			eval: evalUpdatedBy},
		derivedFilter{name: FilterParticipant, vt: domain.ValueTypeUser,
			ops:  []domain.FilterOperator{domain.OpEquals},
			eval: evalParticipant},
	}

	for _, def := range defs {
		if err := s.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Derived evaluators
// ---------------------------------------------------------------------------

// matchDates applies a date-operator clause to a calculator's date set.
// OpNone matches exactly when the set is empty: an issue with no underlying
// occurrences of the event type belongs to "!*" and never to "=" / "*".
func matchDates(c clause, days dateSet, today string) bool {
	switch c.op {
	case domain.OpToday:
		_, ok := days[today]
		return ok
	case domain.OpEquals:
		for _, d := range c.dates {
			if _, ok := days[d]; ok {
				return true
			}
		}
		return false
	case domain.OpAny:
		return len(days) > 0
	case domain.OpNone:
		return len(days) == 0
	}
	return false
}

type dateCalc func(issue domain.Issue, entries []domain.JournalEntry, user uuid.UUID, loc *time.Location) dateSet

// evalDateCalc lifts a per-issue date calculator into a scope evaluator.
func evalDateCalc(calc dateCalc) evalFunc {
	return func(ctx context.Context, ev *evaluation, c clause) (idSet, error) {
		user, err := ev.actingUser()
		if err != nil {
			return nil, err
		}

		issues, err := ev.issueMeta(ctx)
		if err != nil {
			return nil, err
		}
		journals, err := ev.journals(ctx)
		if err != nil {
			return nil, err
		}

		matched := idSet{}
		for _, id := range ev.scope {
			days := calc(issues[id], journals[id], user, ev.svc.loc)
			if matchDates(c, days, ev.today) {
				matched[id] = struct{}{}
			}
		}
		return matched, nil
	}
}

func evalLastVisitOn(ctx context.Context, ev *evaluation, c clause) (idSet, error) {
	if _, err := ev.actingUser(); err != nil {
		return nil, err
	}
	visits, err := ev.userVisits(ctx)
	if err != nil {
		return nil, err
	}

	matched := idSet{}
	for _, id := range ev.scope {
		days := dateSet{}
		if vr, ok := visits[id]; ok {
			days.add(vr.LastVisitedAt, ev.svc.loc)
		}
		if matchDates(c, days, ev.today) {
			matched[id] = struct{}{}
		}
	}
	return matched, nil
}

func evalVisitCount(ctx context.Context, ev *evaluation, c clause) (idSet, error) {
	if _, err := ev.actingUser(); err != nil {
		return nil, err
	}
	visits, err := ev.userVisits(ctx)
	if err != nil {
		return nil, err
	}

	matched := idSet{}
	for _, id := range ev.scope {
		vr, visited := visits[id]

		var ok bool
		switch c.op {
		case domain.OpEquals:
			// An issue without a visit row has no count at all; "= 0"
			// matches nothing.
			for _, n := range c.ints {
				if visited && vr.VisitCount == n {
					ok = true
					break
				}
			}
		case domain.OpAny:
			ok = visited
		case domain.OpNone:
			ok = !visited
		}

		if ok {
			matched[id] = struct{}{}
		}
	}
	return matched, nil
}

func evalUpdatedBy(ctx context.Context, ev *evaluation, c clause) (idSet, error) {
	actors, err := ev.expandRefs(ctx, c.users)
	if err != nil {
		return nil, err
	}
	journals, err := ev.journals(ctx)
	if err != nil {
		return nil, err
	}

	matched := idSet{}
	for _, id := range ev.scope {
		for _, e := range journals[id] {
			if _, ok := actors[e.ActorID]; ok {
				matched[id] = struct{}{}
				break
			}
		}
	}
	return matched, nil
}

func evalParticipant(ctx context.Context, ev *evaluation, c clause) (idSet, error) {
	wanted, err := ev.expandRefs(ctx, c.users)
	if err != nil {
		return nil, err
	}

	participants, err := ev.participantSets(ctx)
	if err != nil {
		return nil, err
	}

	matched := idSet{}
	for _, id := range ev.scope {
		for user := range wanted {
			if _, ok := participants[id][user]; ok {
				matched[id] = struct{}{}
				break
			}
		}
	}
	return matched, nil
}

// expandRefs resolves user-type operands ("me", user ids, group ids) to a
// concrete user-id set via the directory collaborator.
func (ev *evaluation) expandRefs(ctx context.Context, refs []domain.UserRef) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{}, len(refs))
	for _, ref := range refs {
		if ref.Me {
			user, err := ev.actingUser()
			if err != nil {
				return nil, err
			}
			out[user] = struct{}{}
			continue
		}
		members, err := ev.svc.directory.ExpandPrincipal(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("expand principal %s: %w", ref.ID, err)
		}
		for _, m := range members {
			out[m] = struct{}{}
		}
	}
	return out, nil
}
