package executor

import (
	"cmp"
	"fmt"

	"github.com/dshills/QuantaJoin/internal/errors"
	"github.com/dshills/QuantaJoin/internal/join"
	"github.com/dshills/QuantaJoin/internal/log"
	"github.com/dshills/QuantaJoin/internal/types"
)

// JoinPredicate compares one column from each side of a join.
type JoinPredicate struct {
	LeftColumn  string
	RightColumn string
	Op          join.CmpOp
}

// String renders the predicate in "left OP right" form.
func (p JoinPredicate) String() string {
	return fmt.Sprintf("%s %s %s", p.LeftColumn, p.Op, p.RightColumn)
}

// InequalityJoinOperator joins two inputs on a conjunction of exactly
// two inequality predicates. Both inputs are materialized on Open; the
// matching index pairs are then produced incrementally.
type InequalityJoinOperator struct {
	baseOperator
	left       Operator
	right      Operator
	predicates []JoinPredicate
	leftRows   []*Row
	rightRows  []*Row
	pairs      pairStream
}

// NewInequalityJoinOperator creates a new inequality join operator.
func NewInequalityJoinOperator(left, right Operator, predicates []JoinPredicate) *InequalityJoinOperator {
	return &InequalityJoinOperator{
		baseOperator: baseOperator{
			schema: joinSchema(left.Schema(), right.Schema()),
		},
		left:       left,
		right:      right,
		predicates: predicates,
	}
}

// Open materializes both children and builds the join indexes.
func (j *InequalityJoinOperator) Open(ctx *ExecContext) error {
	j.ctx = ctx
	j.leftRows = nil
	j.rightRows = nil
	j.pairs = nil

	if len(j.predicates) != 2 {
		return errors.PredicateCountError(len(j.predicates), 2)
	}
	for _, p := range j.predicates {
		if !p.Op.Valid() {
			return errors.InvalidOperatorError(p.Op.String())
		}
	}

	// Open and drain both children
	if err := j.left.Open(ctx); err != nil {
		return fmt.Errorf("failed to open left child: %w", err)
	}
	if err := j.right.Open(ctx); err != nil {
		return fmt.Errorf("failed to open right child: %w", err)
	}

	var err error
	j.leftRows, err = j.materialize(j.left)
	if err != nil {
		return fmt.Errorf("error reading left rows: %w", err)
	}
	j.rightRows, err = j.materialize(j.right)
	if err != nil {
		return fmt.Errorf("error reading right rows: %w", err)
	}

	ctx.Log().Debug("inequality join materialized inputs",
		log.Int("left_rows", len(j.leftRows)),
		log.Int("right_rows", len(j.rightRows)),
		log.String("on", fmt.Sprintf("%s AND %s", j.predicates[0], j.predicates[1])),
	)

	keys, err := j.extractKeys()
	if err != nil {
		return err
	}

	j.pairs, err = buildPairStream(keys, j.predicates[0].Op, j.predicates[1].Op)
	if err != nil {
		return err
	}

	return nil
}

// Next returns the next joined row.
func (j *InequalityJoinOperator) Next() (*Row, error) {
	if j.pairs == nil {
		return nil, fmt.Errorf("inequality join not opened")
	}

	l, r, ok := j.pairs.Next()
	if !ok {
		return nil, nil // nolint:nilnil // EOF
	}

	joinedRow := joinRows(j.leftRows[l], j.rightRows[r])

	if j.ctx.Stats != nil {
		j.ctx.Stats.RowsReturned++
	}

	return joinedRow, nil
}

// Close cleans up the join operator.
func (j *InequalityJoinOperator) Close() error {
	j.leftRows = nil
	j.rightRows = nil
	j.pairs = nil

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

// materialize drains an operator into a row slice.
func (j *InequalityJoinOperator) materialize(child Operator) ([]*Row, error) {
	var rows []*Row
	for {
		row, err := child.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}

		rowCopy := &Row{
			Values: make([]types.Value, len(row.Values)),
		}
		copy(rowCopy.Values, row.Values)
		rows = append(rows, rowCopy)
	}
	return rows, nil
}

// joinKeys holds the canonical key columns for both predicates.
type joinKeys struct {
	p1Left, p1Right *keyColumn
	p2Left, p2Right *keyColumn
}

// extractKeys resolves the predicate columns and converts them to
// canonical key columns.
func (j *InequalityJoinOperator) extractKeys() (*joinKeys, error) {
	keys := &joinKeys{}
	leftSchema := j.left.Schema()
	rightSchema := j.right.Schema()

	for i, p := range j.predicates {
		leftIdx, ok := leftSchema.ColumnIndex(p.LeftColumn)
		if !ok {
			return nil, errors.UndefinedColumnError(p.LeftColumn).WithWhere("left input")
		}
		rightIdx, ok := rightSchema.ColumnIndex(p.RightColumn)
		if !ok {
			return nil, errors.UndefinedColumnError(p.RightColumn).WithWhere("right input")
		}

		unified, err := unifyKeyTypes(
			leftSchema.Columns[leftIdx].Type,
			rightSchema.Columns[rightIdx].Type,
		)
		if err != nil {
			return nil, err
		}

		lk, err := extractKeyColumn(j.leftRows, leftIdx, p.LeftColumn, unified)
		if err != nil {
			return nil, err
		}
		rk, err := extractKeyColumn(j.rightRows, rightIdx, p.RightColumn, unified)
		if err != nil {
			return nil, err
		}

		if i == 0 {
			keys.p1Left, keys.p1Right = lk, rk
		} else {
			keys.p2Left, keys.p2Right = lk, rk
		}
	}

	return keys, nil
}

// unifyKeyTypes finds the common orderable type for a predicate.
// Integers widen against doubles; all other mixes are rejected.
func unifyKeyTypes(left, right types.DataType) (types.DataType, error) {
	if left == right {
		switch left {
		case types.Integer, types.Double, types.Text, types.Timestamp:
			return left, nil
		default:
			return types.Unknown, errors.Newf(errors.DatatypeMismatch,
				"type %s cannot be ordered in an inequality join", left).
				WithDataType(left.String())
		}
	}

	if (left == types.Integer && right == types.Double) ||
		(left == types.Double && right == types.Integer) {
		return types.Double, nil
	}

	return types.Unknown, errors.DatatypeMismatchError(left.String(), right.String())
}

// keyColumn is one join column converted to its canonical Go
// representation. Exactly one slice is populated, per kind.
type keyColumn struct {
	kind   types.DataType
	ints   []int64
	floats []float64
	strs   []string
}

// extractKeyColumn converts one column of the materialized rows into
// canonical form, rejecting NULLs.
func extractKeyColumn(rows []*Row, idx int, colName string, kind types.DataType) (*keyColumn, error) {
	col := &keyColumn{kind: kind}

	switch kind {
	case types.Integer:
		col.ints = make([]int64, 0, len(rows))
	case types.Timestamp:
		col.ints = make([]int64, 0, len(rows))
	case types.Double:
		col.floats = make([]float64, 0, len(rows))
	case types.Text:
		col.strs = make([]string, 0, len(rows))
	}

	for rowNum, row := range rows {
		v := row.Values[idx]
		if v.IsNull() {
			return nil, errors.NullJoinKeyError(colName, rowNum)
		}

		switch kind {
		case types.Integer:
			n, err := v.AsInt()
			if err != nil {
				return nil, errors.DatatypeMismatchError(kind.String(), v.Type().String()).WithColumn(colName)
			}
			col.ints = append(col.ints, n)
		case types.Timestamp:
			ts, err := v.AsTimestamp()
			if err != nil {
				return nil, errors.DatatypeMismatchError(kind.String(), v.Type().String()).WithColumn(colName)
			}
			col.ints = append(col.ints, ts.UnixNano())
		case types.Double:
			f, err := v.AsDouble()
			if err != nil {
				return nil, errors.DatatypeMismatchError(kind.String(), v.Type().String()).WithColumn(colName)
			}
			col.floats = append(col.floats, f)
		case types.Text:
			s, err := v.AsString()
			if err != nil {
				return nil, errors.DatatypeMismatchError(kind.String(), v.Type().String()).WithColumn(colName)
			}
			col.strs = append(col.strs, s)
		}
	}

	return col, nil
}

// pairStream produces matching (left, right) row index pairs.
type pairStream interface {
	Next() (leftIdx, rightIdx int, ok bool)
}

// ieJoinStream adapts a typed IEJoin to the untyped pair stream.
type ieJoinStream[A, B cmp.Ordered] struct {
	j *join.IEJoin[A, B]
}

func newIEJoinStream[A, B cmp.Ordered](p1 join.Predicate[A], p2 join.Predicate[B]) (pairStream, error) {
	j, err := join.NewIEJoin(p1, p2)
	if err != nil {
		return nil, err
	}
	return &ieJoinStream[A, B]{j: j}, nil
}

func (s *ieJoinStream[A, B]) Next() (int, int, bool) {
	p, ok := s.j.Next()
	if !ok {
		return 0, 0, false
	}
	return p.Left, p.Right, true
}

// buildPairStream instantiates the join for the canonical key types.
// Timestamps ride the integer instantiation.
func buildPairStream(keys *joinKeys, op1, op2 join.CmpOp) (pairStream, error) {
	switch keys.p1Left.kind {
	case types.Integer, types.Timestamp:
		p1 := join.Predicate[int64]{Op: op1, Left: keys.p1Left.ints, Right: keys.p1Right.ints}
		return buildPairStreamWith(p1, keys, op2)
	case types.Double:
		p1 := join.Predicate[float64]{Op: op1, Left: keys.p1Left.floats, Right: keys.p1Right.floats}
		return buildPairStreamWith(p1, keys, op2)
	case types.Text:
		p1 := join.Predicate[string]{Op: op1, Left: keys.p1Left.strs, Right: keys.p1Right.strs}
		return buildPairStreamWith(p1, keys, op2)
	default:
		return nil, errors.Newf(errors.DatatypeMismatch,
			"type %s cannot be ordered in an inequality join", keys.p1Left.kind)
	}
}

// buildPairStreamWith binds the second predicate type.
func buildPairStreamWith[A cmp.Ordered](p1 join.Predicate[A], keys *joinKeys, op2 join.CmpOp) (pairStream, error) {
	switch keys.p2Left.kind {
	case types.Integer, types.Timestamp:
		p2 := join.Predicate[int64]{Op: op2, Left: keys.p2Left.ints, Right: keys.p2Right.ints}
		return newIEJoinStream(p1, p2)
	case types.Double:
		p2 := join.Predicate[float64]{Op: op2, Left: keys.p2Left.floats, Right: keys.p2Right.floats}
		return newIEJoinStream(p1, p2)
	case types.Text:
		p2 := join.Predicate[string]{Op: op2, Left: keys.p2Left.strs, Right: keys.p2Right.strs}
		return newIEJoinStream(p1, p2)
	default:
		return nil, errors.Newf(errors.DatatypeMismatch,
			"type %s cannot be ordered in an inequality join", keys.p2Left.kind)
	}
}
