// Package join implements inequality joins over typed columns.
//
// The core is IEJoin, which evaluates a conjunction of exactly two
// inequality predicates (for example L.a > R.a AND L.b < R.b) in
// O((n+m) log(n+m) + output) time by sorting the union of both sides
// once per attribute and fusing the predicates with an incremental
// bit-marking scan. NestedLoop is the quadratic fallback for
// predicates that do not fit that form.
package join

import (
	"cmp"
	"fmt"
)

// CmpOp identifies one of the four inequality comparison operators.
type CmpOp int

const (
	OpLess CmpOp = iota
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

// String returns the SQL spelling of the operator.
func (op CmpOp) String() string {
	switch op {
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	default:
		return fmt.Sprintf("CmpOp(%d)", int(op))
	}
}

// Valid reports whether op is one of the four supported operators.
func (op CmpOp) Valid() bool {
	return op >= OpLess && op <= OpGreaterEqual
}

// strict reports whether the operator excludes equal values.
func (op CmpOp) strict() bool {
	return op == OpLess || op == OpGreater
}

// ParseCmpOp parses the SQL spelling of an inequality operator.
func ParseCmpOp(s string) (CmpOp, error) {
	switch s {
	case "<":
		return OpLess, nil
	case "<=":
		return OpLessEqual, nil
	case ">":
		return OpGreater, nil
	case ">=":
		return OpGreaterEqual, nil
	default:
		return 0, fmt.Errorf("unknown comparison operator %q", s)
	}
}

// Satisfies reports whether "a op b" holds.
func Satisfies[T cmp.Ordered](op CmpOp, a, b T) bool {
	switch op {
	case OpLess:
		return a < b
	case OpLessEqual:
		return a <= b
	case OpGreater:
		return a > b
	case OpGreaterEqual:
		return a >= b
	default:
		return false
	}
}

// SortOrder represents a sort direction.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// String returns the string representation of the sort order.
func (s SortOrder) String() string {
	if s == Ascending {
		return "ASC"
	}
	return "DESC"
}

// primaryOrder maps the first predicate's operator to the direction its
// attribute union is sorted in. A left row matches a right row exactly
// when the left row's rank is past the right row's, so the sort must
// run in the direction that places satisfying values later.
func primaryOrder(op CmpOp) SortOrder {
	if op == OpGreater || op == OpGreaterEqual {
		return Ascending
	}
	return Descending
}

// secondaryOrder maps the second predicate's operator to the direction
// its attribute union is sorted in. Left rows must be walked before the
// right rows they match, so the direction is the mirror of primaryOrder.
func secondaryOrder(op CmpOp) SortOrder {
	if op == OpLess || op == OpLessEqual {
		return Ascending
	}
	return Descending
}

// side tags which input a union entry originated from.
type side uint8

const (
	sideLeft side = iota
	sideRight
)

// Predicate is one inequality condition together with the attribute
// column it compares on each side. Left holds the attribute value of
// every left row in row order, Right likewise for the right rows. A
// join instance takes two predicates over the same row populations.
type Predicate[T cmp.Ordered] struct {
	Op    CmpOp
	Left  []T
	Right []T
}
