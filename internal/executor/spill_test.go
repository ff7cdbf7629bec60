package executor

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/QuantaJoin/internal/testutil"
	"github.com/dshills/QuantaJoin/internal/types"
)

func TestRowCodecRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 15, 9, 30, 0, 123456789, time.UTC)
	rows := []*Row{
		rowOf(42, -7, 0),
		rowOf(2.5, "hello", true),
		rowOf(nil, "", false),
		rowOf(ts, "naïve text", -1.25),
	}

	var buf bytes.Buffer
	writer := NewRowWriter(&buf)
	for _, row := range rows {
		if err := writer.WriteRow(row); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}

	reader := NewRowReader(bytes.NewReader(buf.Bytes()))
	for i, want := range rows {
		got, err := reader.ReadRow()
		if err != nil {
			t.Fatalf("failed to read row %d: %v", i, err)
		}
		if got == nil {
			t.Fatalf("unexpected EOF at row %d", i)
		}
		if len(got.Values) != len(want.Values) {
			t.Fatalf("row %d: expected %d values, got %d", i, len(want.Values), len(got.Values))
		}
		for j := range want.Values {
			wv, gv := want.Values[j], got.Values[j]
			if wv.Null != gv.Null {
				t.Errorf("row %d value %d: null flag mismatch", i, j)
				continue
			}
			if wv.Null {
				continue
			}
			if wv.Type() != gv.Type() {
				t.Errorf("row %d value %d: expected type %s, got %s", i, j, wv.Type(), gv.Type())
			}
			if types.CompareValues(wv, gv) != 0 {
				t.Errorf("row %d value %d: expected %s, got %s", i, j, wv.String(), gv.String())
			}
		}
	}

	// EOF after the last row
	got, err := reader.ReadRow()
	if err != nil {
		t.Fatalf("unexpected error at EOF: %v", err)
	}
	if got != nil {
		t.Errorf("expected EOF, got %v", got.Values)
	}
}

func TestRunFileRoundTripCompressible(t *testing.T) {
	data := bytes.Repeat([]byte("inequality join spill run "), 512)

	var buf bytes.Buffer
	stored, err := writeRunFile(&buf, data)
	if err != nil {
		t.Fatalf("failed to write run: %v", err)
	}
	if stored >= int64(len(data)) {
		t.Errorf("expected repetitive data to compress, stored %d of %d bytes", stored, len(data))
	}

	got, err := readRunFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("failed to read run: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round-tripped run does not match original")
	}
}

func TestRunFileRoundTripIncompressible(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(rng.Intn(256))
	}

	var buf bytes.Buffer
	stored, err := writeRunFile(&buf, data)
	if err != nil {
		t.Fatalf("failed to write run: %v", err)
	}
	// Random bytes fall back to raw storage.
	if stored != int64(len(data)) {
		t.Errorf("expected raw storage of %d bytes, stored %d", len(data), stored)
	}

	got, err := readRunFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("failed to read run: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("round-tripped run does not match original")
	}
}

func TestDiskIterator(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	rows := []*Row{rowOf(1, "a"), rowOf(2, "b"), rowOf(3, "c")}

	var buf bytes.Buffer
	writer := NewRowWriter(&buf)
	for _, row := range rows {
		if err := writer.WriteRow(row); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}

	fileName := filepath.Join(dir, "run.tmp")
	file, err := os.Create(fileName)
	if err != nil {
		t.Fatalf("failed to create run file: %v", err)
	}
	if _, err := writeRunFile(file, buf.Bytes()); err != nil {
		t.Fatalf("failed to write run file: %v", err)
	}
	file.Close()

	iter := NewDiskIterator(fileName)
	defer iter.Close()

	for i, want := range rows {
		got, err := iter.Next()
		if err != nil {
			t.Fatalf("failed to read row %d: %v", i, err)
		}
		if got == nil {
			t.Fatalf("unexpected EOF at row %d", i)
		}
		if types.CompareValues(got.Values[0], want.Values[0]) != 0 {
			t.Errorf("row %d: expected %s, got %s", i, want.Values[0].String(), got.Values[0].String())
		}
	}

	got, err := iter.Next()
	if err != nil {
		t.Fatalf("unexpected error at EOF: %v", err)
	}
	if got != nil {
		t.Error("expected EOF after last row")
	}
}

func TestDiskIteratorMissingFile(t *testing.T) {
	iter := NewDiskIterator("/nonexistent/run.tmp")
	if _, err := iter.Next(); err == nil {
		t.Error("expected error for missing spill file")
	}
}

func TestMergeIterator(t *testing.T) {
	compareFn := func(a, b *Row) int {
		return types.CompareValues(a.Values[0], b.Values[0])
	}

	runs := []SimpleRowIterator{
		NewMemoryIterator([]*Row{rowOf(1), rowOf(4), rowOf(7)}),
		NewMemoryIterator([]*Row{rowOf(2), rowOf(5)}),
		NewMemoryIterator(nil),
		NewMemoryIterator([]*Row{rowOf(3), rowOf(6)}),
	}

	iter := NewMergeIterator(runs, compareFn)
	defer iter.Close()

	var got []int64
	for {
		row, err := iter.Next()
		if err != nil {
			t.Fatalf("merge error: %v", err)
		}
		if row == nil {
			break
		}
		got = append(got, row.Values[0].Data.(int64))
	}

	want := []int64{1, 2, 3, 4, 5, 6, 7}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestExternalSortSpillsAndCleans(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	rng := rand.New(rand.NewSource(13))
	values := testutil.GenerateIntColumn(rng, 200, 1000)
	rows := make([]*Row, len(values))
	for i, v := range values {
		rows[i] = rowOf(v)
	}

	compareFn := func(a, b *Row) int {
		return types.CompareValues(a.Values[0], b.Values[0])
	}

	stats := &ExecStats{}
	es := newExternalSort(compareFn, 256, dir, stats)

	iter, err := es.Sort(NewMemoryIterator(rows))
	if err != nil {
		t.Fatalf("external sort failed: %v", err)
	}

	var prev *Row
	count := 0
	for {
		row, err := iter.Next()
		if err != nil {
			t.Fatalf("iteration failed: %v", err)
		}
		if row == nil {
			break
		}
		if prev != nil && compareFn(prev, row) > 0 {
			t.Fatalf("output out of order at row %d", count)
		}
		prev = row
		count++
	}
	iter.Close()

	if count != len(rows) {
		t.Errorf("expected %d rows, got %d", len(rows), count)
	}
	if stats.SpilledRuns == 0 {
		t.Error("expected runs to spill with a tiny budget")
	}

	es.Cleanup()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected cleanup to remove spill files, found %d", len(entries))
	}
}
