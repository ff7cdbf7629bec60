package executor

import (
	"fmt"

	"github.com/dshills/QuantaJoin/internal/errors"
	"github.com/dshills/QuantaJoin/internal/join"
	"github.com/dshills/QuantaJoin/internal/types"
)

// NestedLoopJoinOperator joins two inputs on any conjunction of
// inequality predicates, including none at all (a cross join). It is
// the fallback for predicate sets the inequality join cannot take.
type NestedLoopJoinOperator struct {
	baseOperator
	left       Operator
	right      Operator
	predicates []JoinPredicate
	resolved   []resolvedPredicate
	leftRow    *Row
	rightOpen  bool
}

// resolvedPredicate is a predicate bound to column positions.
type resolvedPredicate struct {
	leftIdx  int
	rightIdx int
	op       join.CmpOp
}

// NewNestedLoopJoinOperator creates a new nested loop join operator.
func NewNestedLoopJoinOperator(left, right Operator, predicates []JoinPredicate) *NestedLoopJoinOperator {
	return &NestedLoopJoinOperator{
		baseOperator: baseOperator{
			schema: joinSchema(left.Schema(), right.Schema()),
		},
		left:       left,
		right:      right,
		predicates: predicates,
	}
}

// Open initializes the join operator.
func (j *NestedLoopJoinOperator) Open(ctx *ExecContext) error {
	j.ctx = ctx
	j.leftRow = nil
	j.rightOpen = false

	resolved, err := resolvePredicates(j.predicates, j.left.Schema(), j.right.Schema())
	if err != nil {
		return err
	}
	j.resolved = resolved

	// Open left child
	if err := j.left.Open(ctx); err != nil {
		return fmt.Errorf("failed to open left child: %w", err)
	}

	// Open right child
	if err := j.right.Open(ctx); err != nil {
		return fmt.Errorf("failed to open right child: %w", err)
	}
	j.rightOpen = true

	return nil
}

// Next returns the next joined row.
func (j *NestedLoopJoinOperator) Next() (*Row, error) {
	for {
		// Get next left row if needed
		if j.leftRow == nil {
			var err error
			j.leftRow, err = j.left.Next()
			if err != nil {
				return nil, fmt.Errorf("error reading left row: %w", err)
			}
			if j.leftRow == nil {
				return nil, nil // nolint:nilnil // EOF
			}

			// Reset right child for new left row
			if j.rightOpen {
				if err := j.right.Close(); err != nil {
					return nil, fmt.Errorf("failed to close right child: %w", err)
				}
			}
			if err := j.right.Open(j.ctx); err != nil {
				return nil, fmt.Errorf("failed to reopen right child: %w", err)
			}
			j.rightOpen = true
		}

		// Get next right row
		rightRow, err := j.right.Next()
		if err != nil {
			return nil, fmt.Errorf("error reading right row: %w", err)
		}

		if rightRow == nil {
			// No more right rows for this left row
			j.leftRow = nil
			continue
		}

		if !j.matches(j.leftRow, rightRow) {
			continue
		}

		joinedRow := joinRows(j.leftRow, rightRow)

		if j.ctx.Stats != nil {
			j.ctx.Stats.RowsReturned++
		}

		return joinedRow, nil
	}
}

// matches evaluates the predicate conjunction. A NULL on either side
// of any comparison disqualifies the pair.
func (j *NestedLoopJoinOperator) matches(left, right *Row) bool {
	for _, p := range j.resolved {
		lv := left.Values[p.leftIdx]
		rv := right.Values[p.rightIdx]
		if lv.IsNull() || rv.IsNull() {
			return false
		}
		if !satisfiesCmp(p.op, types.CompareValues(lv, rv)) {
			return false
		}
	}
	return true
}

// Close cleans up the join operator.
func (j *NestedLoopJoinOperator) Close() error {
	var leftErr, rightErr error

	if j.left != nil {
		leftErr = j.left.Close()
	}

	if j.right != nil {
		rightErr = j.right.Close()
	}

	if leftErr != nil {
		return leftErr
	}

	return rightErr
}

// resolvePredicates binds predicate columns to positions and checks
// that each comparison is between compatible types.
func resolvePredicates(predicates []JoinPredicate, left, right *Schema) ([]resolvedPredicate, error) {
	resolved := make([]resolvedPredicate, 0, len(predicates))

	for _, p := range predicates {
		if !p.Op.Valid() {
			return nil, errors.InvalidOperatorError(p.Op.String())
		}

		leftIdx, ok := left.ColumnIndex(p.LeftColumn)
		if !ok {
			return nil, errors.UndefinedColumnError(p.LeftColumn).WithWhere("left input")
		}
		rightIdx, ok := right.ColumnIndex(p.RightColumn)
		if !ok {
			return nil, errors.UndefinedColumnError(p.RightColumn).WithWhere("right input")
		}

		lt := left.Columns[leftIdx].Type
		rt := right.Columns[rightIdx].Type
		if lt != rt && !numericPair(lt, rt) {
			return nil, errors.DatatypeMismatchError(lt.String(), rt.String())
		}

		resolved = append(resolved, resolvedPredicate{
			leftIdx:  leftIdx,
			rightIdx: rightIdx,
			op:       p.Op,
		})
	}

	return resolved, nil
}

// numericPair reports whether the two types mix as numbers.
func numericPair(a, b types.DataType) bool {
	return (a == types.Integer && b == types.Double) ||
		(a == types.Double && b == types.Integer)
}

// satisfiesCmp applies an inequality operator to a three-way
// comparison result.
func satisfiesCmp(op join.CmpOp, c int) bool {
	switch op {
	case join.OpLess:
		return c < 0
	case join.OpLessEqual:
		return c <= 0
	case join.OpGreater:
		return c > 0
	case join.OpGreaterEqual:
		return c >= 0
	default:
		return false
	}
}

// NewJoinOperator picks the join strategy for a predicate set. Exactly
// two inequality predicates run as an IEJoin; anything else falls back
// to the nested loop.
func NewJoinOperator(left, right Operator, predicates []JoinPredicate) Operator {
	if len(predicates) == 2 {
		return NewInequalityJoinOperator(left, right, predicates)
	}
	return NewNestedLoopJoinOperator(left, right, predicates)
}
