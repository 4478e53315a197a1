package query

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/dkosarev/trackfilter-backend/internal/domain"
	"github.com/dkosarev/trackfilter-backend/pkg/ctxutil"
)

// ---------------------------------------------------------------------------
// Query builder
// ---------------------------------------------------------------------------

// clause is one validated (filter, operator, operands) tuple. Operands are
// parsed at AddFilter time so evaluation never sees malformed input.
type clause struct {
	name  string
	op    domain.FilterOperator
	raw   []string
	dates []string // normalized day keys
	ints  []int
	users []domain.UserRef
}

// Query accumulates filters and answers count / grouped-count / id-list
// questions. Building is cheap; every result accessor re-evaluates the
// current filter set from scratch against the data visible at call time.
// A Query is not safe for concurrent use; evaluations of distinct Query
// values are.
type Query struct {
	svc     *Service
	groupBy domain.GroupDimension
	order   []string
	clauses map[string]clause
}

// NewQuery starts an empty query over the full issue scope.
func (s *Service) NewQuery() *Query {
	return &Query{
		svc:     s,
		clauses: make(map[string]clause),
	}
}

// GroupBy sets the dimension for CountByGroup.
func (q *Query) GroupBy(dim domain.GroupDimension) error {
	if !dim.Valid() {
		return fmt.Errorf("group dimension %q: %w", dim, domain.ErrValidation)
	}
	q.groupBy = dim
	return nil
}

// AddFilter adds a named filter with an operator and operands. Unknown
// names, unsupported operators, and unparseable operands fail here, not at
// evaluation. Adding the same filter twice replaces the earlier clause.
func (q *Query) AddFilter(name string, op domain.FilterOperator, operands ...string) error {
	def, ok := q.svc.definition(name)
	if !ok {
		return &domain.UnknownFilterError{Name: name}
	}

	if !domain.OperatorSupported(op, def.Operators()) {
		return &domain.InvalidFilterError{Name: name, Operator: op,
			Reason: fmt.Sprintf("not supported for %s filters", def.ValueType())}
	}

	c := clause{name: name, op: op, raw: operands}

	switch op {
	case domain.OpEquals:
		if len(operands) == 0 {
			return &domain.InvalidFilterError{Name: name, Operator: op, Reason: "requires at least one operand"}
		}
		if err := q.parseOperands(&c, def); err != nil {
			return err
		}
	case domain.OpNone, domain.OpAny, domain.OpToday:
		if len(operands) != 0 {
			return &domain.InvalidFilterError{Name: name, Operator: op, Reason: "takes no operands"}
		}
	}

	if _, exists := q.clauses[name]; !exists {
		q.order = append(q.order, name)
	}
	q.clauses[name] = c
	return nil
}

func (q *Query) parseOperands(c *clause, def FilterDefinition) error {
	for _, raw := range c.raw {
		switch def.ValueType() {
		case domain.ValueTypeDate:
			d, err := domain.ParseDateOperand(raw, q.svc.loc)
			if err != nil {
				return &domain.InvalidFilterError{Name: c.name, Operator: c.op,
					Reason: fmt.Sprintf("operand %q is not a date", raw)}
			}
			c.dates = append(c.dates, dayKey(d, q.svc.loc))
		case domain.ValueTypeInt:
			n, err := domain.ParseIntOperand(raw)
			if err != nil || n < 0 {
				return &domain.InvalidFilterError{Name: c.name, Operator: c.op,
					Reason: fmt.Sprintf("operand %q is not a non-negative integer", raw)}
			}
			c.ints = append(c.ints, n)
		case domain.ValueTypeUser:
			ref, err := domain.ParseUserOperand(raw)
			if err != nil {
				return &domain.InvalidFilterError{Name: c.name, Operator: c.op,
					Reason: fmt.Sprintf("operand %q is not %q or a principal id", raw, domain.MeOperand)}
			}
			c.users = append(c.users, ref)
		case domain.ValueTypeEnum:
			if raw == "" {
				return &domain.InvalidFilterError{Name: c.name, Operator: c.op, Reason: "empty operand"}
			}
			if sf, ok := def.(storedFilter); ok && len(sf.enum) > 0 && !slices.Contains(sf.enum, raw) {
				return &domain.InvalidFilterError{Name: c.name, Operator: c.op,
					Reason: fmt.Sprintf("operand %q is not a recognized value", raw)}
			}
		}
	}
	return nil
}

// HasFilter reports whether the named filter has been added.
func (q *Query) HasFilter(name string) bool {
	_, ok := q.clauses[name]
	return ok
}

// ---------------------------------------------------------------------------
// Result accessors
// ---------------------------------------------------------------------------

// Count returns the number of matching issues.
func (q *Query) Count(ctx context.Context) (int, error) {
	matched, err := q.evaluate(ctx)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// IDs returns the matching issue ids in a stable (id-sorted) order.
func (q *Query) IDs(ctx context.Context) ([]uuid.UUID, error) {
	matched, err := q.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return matched.sorted(), nil
}

// Issues resolves the matching issues via the record store.
func (q *Query) Issues(ctx context.Context) ([]domain.Issue, error) {
	matched, err := q.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return q.svc.issues.ListByIDs(ctx, matched.sorted())
}

// CountByGroup returns match counts keyed by the GroupBy dimension. Only
// group values actually present among the matches appear; there are no
// implicit zero-count groups.
func (q *Query) CountByGroup(ctx context.Context) (map[string]int, error) {
	if q.groupBy == "" {
		return nil, fmt.Errorf("group dimension not set: %w", domain.ErrValidation)
	}

	matched, err := q.evaluate(ctx)
	if err != nil {
		return nil, err
	}

	keys, err := q.svc.issues.GroupKeys(ctx, matched.sorted(), q.groupBy)
	if err != nil {
		return nil, fmt.Errorf("resolve group keys: %w", err)
	}

	counts := make(map[string]int)
	for id := range matched {
		counts[keys[id]]++
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// evaluate partitions the clauses into storage-delegated and core-derived
// ones, computes the base scope from the former, then intersects in the
// per-filter derived id sets. An empty intersection short-circuits.
func (q *Query) evaluate(ctx context.Context) (idSet, error) {
	conds, derived, err := q.partition(ctx)
	if err != nil {
		return nil, err
	}

	scope, err := q.svc.issues.Scope(ctx, conds)
	if err != nil {
		return nil, fmt.Errorf("issue scope: %w", err)
	}

	matched := newIDSet(scope)
	if len(matched) == 0 || len(derived) == 0 {
		return matched, nil
	}

	ev := q.svc.newEvaluation(ctx, scope)
	for _, c := range derived {
		def := q.svc.registry[c.name].(derivedFilter)
		set, err := def.eval(ctx, ev, c)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", c.name, err)
		}
		matched = matched.intersect(set)
		if len(matched) == 0 {
			return matched, nil
		}
	}
	return matched, nil
}

// partition splits clauses in insertion order; "me" operands of stored
// user-type filters are resolved to the acting user here.
func (q *Query) partition(ctx context.Context) ([]domain.StoredCondition, []clause, error) {
	var conds []domain.StoredCondition
	var derived []clause

	for _, name := range q.order {
		c := q.clauses[name]
		switch def := q.svc.registry[name].(type) {
		case storedFilter:
			values := make([]string, 0, len(c.raw))
			if def.vt == domain.ValueTypeUser {
				for _, ref := range c.users {
					if ref.Me {
						user, ok := ctxutil.ActingUser(ctx)
						if !ok {
							return nil, nil, fmt.Errorf("filter %q: %w", name, domain.ErrUnauthorized)
						}
						values = append(values, user.String())
						continue
					}
					values = append(values, ref.ID.String())
				}
			} else {
				values = append(values, c.raw...)
			}
			conds = append(conds, domain.StoredCondition{Column: def.column, Op: c.op, Values: values})
		case derivedFilter:
			derived = append(derived, c)
		}
	}
	return conds, derived, nil
}
