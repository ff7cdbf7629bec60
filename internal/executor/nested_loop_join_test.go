package executor

import (
	"testing"

	"github.com/dshills/QuantaJoin/internal/errors"
	"github.com/dshills/QuantaJoin/internal/join"
	"github.com/dshills/QuantaJoin/internal/types"
)

func TestNestedLoopJoinCrossProduct(t *testing.T) {
	leftSchema := intSchema("l")
	rightSchema := intSchema("r")

	left := newMockOperator([]*Row{rowOf(1), rowOf(2)}, leftSchema)
	right := newMockOperator([]*Row{rowOf(10), rowOf(20), rowOf(30)}, rightSchema)

	op := NewNestedLoopJoinOperator(left, right, nil)

	ctx := &ExecContext{Stats: &ExecStats{}}
	results := collectRows(t, op, ctx)

	if len(results) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(results))
	}

	// Left-major order: each left row against every right row.
	first := results[0]
	if first.Values[0].Data.(int64) != 1 || first.Values[1].Data.(int64) != 10 {
		t.Errorf("unexpected first row: %v", first.Values)
	}
	last := results[5]
	if last.Values[0].Data.(int64) != 2 || last.Values[1].Data.(int64) != 30 {
		t.Errorf("unexpected last row: %v", last.Values)
	}

	if ctx.Stats.RowsReturned != 6 {
		t.Errorf("expected 6 rows returned in stats, got %d", ctx.Stats.RowsReturned)
	}
}

func TestNestedLoopJoinSinglePredicate(t *testing.T) {
	schema := intSchema("id", "v")
	left := newMockOperator([]*Row{rowOf(0, 5), rowOf(1, 9)}, schema)
	right := newMockOperator([]*Row{rowOf(0, 7), rowOf(1, 3)}, schema)

	op := NewNestedLoopJoinOperator(left, right, []JoinPredicate{
		{LeftColumn: "v", RightColumn: "v", Op: join.OpLess},
	})

	ctx := &ExecContext{Stats: &ExecStats{}}
	results := collectRows(t, op, ctx)

	// v < v matches only (5, 7).
	if len(results) != 1 {
		t.Fatalf("expected 1 row, got %d", len(results))
	}
	got := results[0]
	if got.Values[0].Data.(int64) != 0 || got.Values[2].Data.(int64) != 0 {
		t.Errorf("unexpected row: %v", got.Values)
	}
}

func TestNestedLoopJoinThreePredicates(t *testing.T) {
	schema := intSchema("a", "b", "c")
	left := newMockOperator([]*Row{
		rowOf(1, 10, 100),
		rowOf(2, 20, 200),
		rowOf(3, 30, 300),
	}, schema)
	right := newMockOperator([]*Row{
		rowOf(0, 25, 250),
		rowOf(2, 25, 250),
	}, schema)

	op := NewNestedLoopJoinOperator(left, right, []JoinPredicate{
		{LeftColumn: "a", RightColumn: "a", Op: join.OpGreater},
		{LeftColumn: "b", RightColumn: "b", Op: join.OpLess},
		{LeftColumn: "c", RightColumn: "c", Op: join.OpLessEqual},
	})

	ctx := &ExecContext{Stats: &ExecStats{}}
	results := collectRows(t, op, ctx)

	// a > a AND b < b AND c <= c: the first two left rows match the
	// right row with a=0 and nothing else; (3,30,300) fails b < 25
	// against both right rows.
	if len(results) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(results))
	}
	for _, row := range results {
		if row.Values[3].Data.(int64) != 0 {
			t.Errorf("expected matches against right a=0 only, got %v", row.Values)
		}
	}
}

func TestNestedLoopJoinNullsDoNotMatch(t *testing.T) {
	schema := intSchema("id", "v")
	left := newMockOperator([]*Row{rowOf(0, nil), rowOf(1, 5)}, schema)
	right := newMockOperator([]*Row{rowOf(0, 9), rowOf(1, nil)}, schema)

	op := NewNestedLoopJoinOperator(left, right, []JoinPredicate{
		{LeftColumn: "v", RightColumn: "v", Op: join.OpLess},
	})

	ctx := &ExecContext{Stats: &ExecStats{}}
	results := collectRows(t, op, ctx)

	// NULL compares to nothing; only (5, 9) matches.
	if len(results) != 1 {
		t.Fatalf("expected 1 row, got %d", len(results))
	}
	if results[0].Values[0].Data.(int64) != 1 || results[0].Values[2].Data.(int64) != 0 {
		t.Errorf("unexpected row: %v", results[0].Values)
	}
}

func TestNestedLoopJoinMixedNumeric(t *testing.T) {
	leftSchema := &Schema{Columns: []Column{{Name: "v", Type: types.Integer}}}
	rightSchema := &Schema{Columns: []Column{{Name: "v", Type: types.Double}}}

	left := newMockOperator([]*Row{rowOf(2)}, leftSchema)
	right := newMockOperator([]*Row{rowOf(1.5), rowOf(2.5)}, rightSchema)

	op := NewNestedLoopJoinOperator(left, right, []JoinPredicate{
		{LeftColumn: "v", RightColumn: "v", Op: join.OpGreater},
	})

	ctx := &ExecContext{Stats: &ExecStats{}}
	results := collectRows(t, op, ctx)

	if len(results) != 1 {
		t.Fatalf("expected 1 row, got %d", len(results))
	}
	if results[0].Values[1].Data.(float64) != 1.5 {
		t.Errorf("unexpected row: %v", results[0].Values)
	}
}

func TestNestedLoopJoinOpenErrors(t *testing.T) {
	leftSchema := &Schema{Columns: []Column{
		{Name: "a", Type: types.Integer},
		{Name: "s", Type: types.Text},
	}}
	rightSchema := &Schema{Columns: []Column{
		{Name: "a", Type: types.Integer},
		{Name: "s", Type: types.Integer},
	}}

	tests := []struct {
		name      string
		predicate JoinPredicate
		code      string
	}{
		{
			name:      "invalid operator",
			predicate: JoinPredicate{LeftColumn: "a", RightColumn: "a", Op: join.CmpOp(-1)},
			code:      errors.InvalidOperator,
		},
		{
			name:      "undefined left column",
			predicate: JoinPredicate{LeftColumn: "zzz", RightColumn: "a", Op: join.OpLess},
			code:      errors.UndefinedColumn,
		},
		{
			name:      "undefined right column",
			predicate: JoinPredicate{LeftColumn: "a", RightColumn: "zzz", Op: join.OpLess},
			code:      errors.UndefinedColumn,
		},
		{
			name:      "type mismatch",
			predicate: JoinPredicate{LeftColumn: "s", RightColumn: "s", Op: join.OpLess},
			code:      errors.DatatypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewNestedLoopJoinOperator(
				newMockOperator(nil, leftSchema),
				newMockOperator(nil, rightSchema),
				[]JoinPredicate{tt.predicate},
			)
			err := op.Open(&ExecContext{Stats: &ExecStats{}})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.IsCode(err, tt.code) {
				t.Errorf("expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestNestedLoopJoinReopensRight(t *testing.T) {
	schema := intSchema("v")
	left := newMockOperator([]*Row{rowOf(1), rowOf(2), rowOf(3)}, schema)
	right := newMockOperator([]*Row{rowOf(0)}, schema)

	op := NewNestedLoopJoinOperator(left, right, nil)

	ctx := &ExecContext{Stats: &ExecStats{}}
	results := collectRows(t, op, ctx)

	if len(results) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(results))
	}
	// The right side is reopened once per remaining left row.
	if right.closes < 2 {
		t.Errorf("expected right side to be closed between left rows, closes=%d", right.closes)
	}
}
