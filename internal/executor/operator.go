package executor

import (
	"github.com/dshills/QuantaJoin/internal/types"
)

// Operator is the base interface for all execution operators.
type Operator interface {
	// Open initializes the operator.
	Open(ctx *ExecContext) error
	// Next returns the next row or nil when done.
	Next() (*Row, error)
	// Close cleans up resources.
	Close() error
	// Schema returns the output schema.
	Schema() *Schema
}

// baseOperator provides common functionality for operators.
type baseOperator struct {
	schema *Schema
	ctx    *ExecContext
}

func (o *baseOperator) Schema() *Schema {
	return o.schema
}

// ValuesOperator returns a fixed set of rows.
type ValuesOperator struct {
	baseOperator
	rows     []*Row
	position int
}

// NewValuesOperator creates a new values operator.
func NewValuesOperator(schema *Schema, rows []*Row) *ValuesOperator {
	return &ValuesOperator{
		baseOperator: baseOperator{
			schema: schema,
		},
		rows: rows,
	}
}

// Open initializes the values operator.
func (v *ValuesOperator) Open(ctx *ExecContext) error {
	v.ctx = ctx
	v.position = 0
	return nil
}

// Next returns the next row.
func (v *ValuesOperator) Next() (*Row, error) {
	if v.position >= len(v.rows) {
		return nil, nil // nolint:nilnil // EOF
	}

	row := v.rows[v.position]
	v.position++

	if v.ctx.Stats != nil {
		v.ctx.Stats.RowsRead++
	}

	return row, nil
}

// Close cleans up the values operator.
func (v *ValuesOperator) Close() error {
	return nil
}

// joinSchema combines left and right schemas into one.
func joinSchema(left, right *Schema) *Schema {
	columns := make([]Column, 0, len(left.Columns)+len(right.Columns))
	columns = append(columns, left.Columns...)
	columns = append(columns, right.Columns...)
	return &Schema{Columns: columns}
}

// joinRows combines left and right rows into a single row.
func joinRows(left, right *Row) *Row {
	values := make([]types.Value, len(left.Values)+len(right.Values))
	copy(values, left.Values)
	copy(values[len(left.Values):], right.Values)

	return &Row{Values: values}
}
