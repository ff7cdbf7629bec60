package executor

import (
	"fmt"
	"sort"

	"github.com/dshills/QuantaJoin/internal/errors"
	"github.com/dshills/QuantaJoin/internal/join"
	"github.com/dshills/QuantaJoin/internal/log"
	"github.com/dshills/QuantaJoin/internal/types"
)

// SortOperator implements ORDER BY over its child. Input within the
// memory budget is sorted in place; larger input goes through sorted
// runs spilled to disk.
type SortOperator struct {
	baseOperator
	child    Operator
	keys     []SortKey
	resolved []resolvedKey
	iter     SimpleRowIterator
	external *externalSort
	sorted   bool
}

// SortKey orders output rows by one column.
type SortKey struct {
	Column string
	Order  join.SortOrder
}

// resolvedKey is a sort key bound to a column position.
type resolvedKey struct {
	idx   int
	order join.SortOrder
}

// NewSortOperator creates a new sort operator.
func NewSortOperator(child Operator, keys []SortKey) *SortOperator {
	return &SortOperator{
		baseOperator: baseOperator{
			schema: child.Schema(),
		},
		child: child,
		keys:  keys,
	}
}

// Open initializes the sort operator.
func (s *SortOperator) Open(ctx *ExecContext) error {
	s.ctx = ctx
	s.iter = nil
	s.external = nil
	s.sorted = false

	schema := s.child.Schema()
	s.resolved = make([]resolvedKey, len(s.keys))
	for i, key := range s.keys {
		idx, ok := schema.ColumnIndex(key.Column)
		if !ok {
			return errors.UndefinedColumnError(key.Column).WithWhere("sort key")
		}
		s.resolved[i] = resolvedKey{idx: idx, order: key.Order}
	}

	return s.child.Open(ctx)
}

// Next returns the next sorted row.
func (s *SortOperator) Next() (*Row, error) {
	// First time: consume the child and sort
	if !s.sorted {
		if err := s.sortInput(); err != nil {
			return nil, err
		}
		s.sorted = true
	}

	row, err := s.iter.Next()
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil // nolint:nilnil // EOF
	}

	if s.ctx.Stats != nil {
		s.ctx.Stats.RowsReturned++
	}

	return row, nil
}

// sortInput sorts the child output, spilling when a memory budget is
// configured and exceeded.
func (s *SortOperator) sortInput() error {
	if s.ctx.MemoryLimit > 0 {
		s.external = newExternalSort(s.compareRows, s.ctx.MemoryLimit, s.ctx.TempDir, s.ctx.Stats)
		iter, err := s.external.Sort(operatorIterator{op: s.child})
		if err != nil {
			return fmt.Errorf("external sort failed: %w", err)
		}
		s.iter = iter

		if runs := len(s.external.spillFiles); runs > 0 {
			s.ctx.Log().Debug("sort spilled to disk",
				log.Int("runs", runs),
				log.String("dir", s.external.tempDir),
			)
		}
		return nil
	}

	// No budget, sort everything in memory
	var rows []*Row
	for {
		row, err := s.child.Next()
		if err != nil {
			return fmt.Errorf("error reading row for sort: %w", err)
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

	if len(s.resolved) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			return s.compareRows(rows[i], rows[j]) < 0
		})
	}

	s.iter = NewMemoryIterator(rows)
	return nil
}

// compareRows orders two rows by the resolved sort keys. NULLs sort
// first in ascending order.
func (s *SortOperator) compareRows(a, b *Row) int {
	for _, key := range s.resolved {
		c := types.CompareValues(a.Values[key.idx], b.Values[key.idx])
		if c != 0 {
			if key.order == join.Descending {
				return -c
			}
			return c
		}
	}
	return 0
}

// Close cleans up the sort operator.
func (s *SortOperator) Close() error {
	if s.iter != nil {
		if err := s.iter.Close(); err != nil {
			return err
		}
		s.iter = nil
	}
	if s.external != nil {
		s.external.Cleanup()
		s.external = nil
	}
	return s.child.Close()
}

// operatorIterator adapts an operator to the run iterator interface.
// Closing is left to the owning operator.
type operatorIterator struct {
	op Operator
}

func (o operatorIterator) Next() (*Row, error) {
	return o.op.Next()
}

func (o operatorIterator) Close() error {
	return nil
}
