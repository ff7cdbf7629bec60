package executor

import (
	"math/rand"
	"os"
	"testing"

	"github.com/dshills/QuantaJoin/internal/errors"
	"github.com/dshills/QuantaJoin/internal/join"
	"github.com/dshills/QuantaJoin/internal/testutil"
	"github.com/dshills/QuantaJoin/internal/types"
)

func TestSortOperatorAscending(t *testing.T) {
	schema := intSchema("v")
	child := newMockOperator([]*Row{rowOf(3), rowOf(1), rowOf(2)}, schema)

	op := NewSortOperator(child, []SortKey{{Column: "v", Order: join.Ascending}})

	ctx := &ExecContext{Stats: &ExecStats{}}
	results := collectRows(t, op, ctx)

	if len(results) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(results))
	}
	for i, want := range []int64{1, 2, 3} {
		if got := results[i].Values[0].Data.(int64); got != want {
			t.Errorf("row %d: expected %d, got %d", i, want, got)
		}
	}

	if ctx.Stats.RowsReturned != 3 {
		t.Errorf("expected 3 rows returned in stats, got %d", ctx.Stats.RowsReturned)
	}
}

func TestSortOperatorDescending(t *testing.T) {
	schema := intSchema("v")
	child := newMockOperator([]*Row{rowOf(3), rowOf(1), rowOf(2)}, schema)

	op := NewSortOperator(child, []SortKey{{Column: "v", Order: join.Descending}})

	results := collectRows(t, op, &ExecContext{Stats: &ExecStats{}})

	for i, want := range []int64{3, 2, 1} {
		if got := results[i].Values[0].Data.(int64); got != want {
			t.Errorf("row %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestSortOperatorMultiKey(t *testing.T) {
	schema := intSchema("grp", "v")
	child := newMockOperator([]*Row{
		rowOf(2, 10),
		rowOf(1, 10),
		rowOf(1, 30),
		rowOf(2, 20),
	}, schema)

	op := NewSortOperator(child, []SortKey{
		{Column: "grp", Order: join.Ascending},
		{Column: "v", Order: join.Descending},
	})

	results := collectRows(t, op, &ExecContext{Stats: &ExecStats{}})

	want := [][2]int64{{1, 30}, {1, 10}, {2, 20}, {2, 10}}
	for i, w := range want {
		grp := results[i].Values[0].Data.(int64)
		v := results[i].Values[1].Data.(int64)
		if grp != w[0] || v != w[1] {
			t.Errorf("row %d: expected (%d,%d), got (%d,%d)", i, w[0], w[1], grp, v)
		}
	}
}

func TestSortOperatorStableOnTies(t *testing.T) {
	schema := intSchema("k", "id")
	child := newMockOperator([]*Row{
		rowOf(1, 0),
		rowOf(0, 1),
		rowOf(1, 2),
		rowOf(0, 3),
	}, schema)

	op := NewSortOperator(child, []SortKey{{Column: "k", Order: join.Ascending}})

	results := collectRows(t, op, &ExecContext{Stats: &ExecStats{}})

	// Ties keep input order.
	wantIDs := []int64{1, 3, 0, 2}
	for i, want := range wantIDs {
		if got := results[i].Values[1].Data.(int64); got != want {
			t.Errorf("row %d: expected id %d, got %d", i, want, got)
		}
	}
}

func TestSortOperatorNullsFirst(t *testing.T) {
	schema := intSchema("v")
	child := newMockOperator([]*Row{rowOf(2), rowOf(nil), rowOf(1)}, schema)

	op := NewSortOperator(child, []SortKey{{Column: "v", Order: join.Ascending}})
	results := collectRows(t, op, &ExecContext{Stats: &ExecStats{}})

	if !results[0].Values[0].Null {
		t.Error("expected NULL to sort first ascending")
	}

	op = NewSortOperator(
		newMockOperator([]*Row{rowOf(2), rowOf(nil), rowOf(1)}, schema),
		[]SortKey{{Column: "v", Order: join.Descending}},
	)
	results = collectRows(t, op, &ExecContext{Stats: &ExecStats{}})

	if !results[2].Values[0].Null {
		t.Error("expected NULL to sort last descending")
	}
}

func TestSortOperatorNoKeys(t *testing.T) {
	schema := intSchema("v")
	child := newMockOperator([]*Row{rowOf(3), rowOf(1), rowOf(2)}, schema)

	op := NewSortOperator(child, nil)
	results := collectRows(t, op, &ExecContext{Stats: &ExecStats{}})

	// Without keys the input order passes through.
	for i, want := range []int64{3, 1, 2} {
		if got := results[i].Values[0].Data.(int64); got != want {
			t.Errorf("row %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestSortOperatorUndefinedColumn(t *testing.T) {
	schema := intSchema("v")
	op := NewSortOperator(
		newMockOperator(nil, schema),
		[]SortKey{{Column: "missing", Order: join.Ascending}},
	)

	err := op.Open(&ExecContext{Stats: &ExecStats{}})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.IsCode(err, errors.UndefinedColumn) {
		t.Errorf("expected undefined column error, got %v", err)
	}
}

func TestSortOperatorExternalMatchesInMemory(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	keys := testutil.GenerateIntColumn(rng, 400, 20)
	tags := testutil.GenerateTextColumn(rng, 400, 50)

	schema := &Schema{Columns: []Column{
		{Name: "k", Type: types.Integer},
		{Name: "id", Type: types.Integer},
		{Name: "tag", Type: types.Text},
	}}
	rows := make([]*Row, len(keys))
	for i := range keys {
		rows[i] = rowOf(keys[i], i, tags[i])
	}

	// The id key makes the order total, so both paths must agree exactly.
	sortKeys := []SortKey{
		{Column: "k", Order: join.Ascending},
		{Column: "id", Order: join.Ascending},
	}

	memOp := NewSortOperator(newMockOperator(rows, schema), sortKeys)
	memRows := rowStrings(collectRows(t, memOp, &ExecContext{Stats: &ExecStats{}}))

	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	extCtx := &ExecContext{
		Stats:       &ExecStats{},
		MemoryLimit: 2048,
		TempDir:     dir,
	}
	extOp := NewSortOperator(newMockOperator(rows, schema), sortKeys)
	extRows := rowStrings(collectRows(t, extOp, extCtx))

	if extCtx.Stats.SpilledRuns == 0 {
		t.Fatal("expected the external sort to spill runs")
	}
	if extCtx.Stats.SpilledBytes == 0 {
		t.Error("expected spilled bytes to be counted")
	}

	if len(extRows) != len(memRows) {
		t.Fatalf("expected %d rows, got %d", len(memRows), len(extRows))
	}
	for i := range memRows {
		if extRows[i] != memRows[i] {
			t.Fatalf("row %d: expected %s, got %s", i, memRows[i], extRows[i])
		}
	}

	// Close removed the spill files.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no spill files after close, found %d", len(entries))
	}
}

func TestSortOperatorExternalSmallInput(t *testing.T) {
	schema := intSchema("v")
	child := newMockOperator([]*Row{rowOf(2), rowOf(1)}, schema)

	op := NewSortOperator(child, []SortKey{{Column: "v", Order: join.Ascending}})

	// A generous budget keeps the single run in memory.
	ctx := &ExecContext{Stats: &ExecStats{}, MemoryLimit: 1 << 20}
	results := collectRows(t, op, ctx)

	if len(results) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(results))
	}
	if results[0].Values[0].Data.(int64) != 1 {
		t.Errorf("unexpected order: %v", rowStrings(results))
	}
	if ctx.Stats.SpilledRuns != 0 {
		t.Errorf("expected no spilled runs, got %d", ctx.Stats.SpilledRuns)
	}
}
