package executor

import (
	"github.com/dshills/QuantaJoin/internal/log"
	"github.com/dshills/QuantaJoin/internal/types"
)

// ExecContext provides context for operator execution.
type ExecContext struct {
	// Logger for operator diagnostics
	Logger log.Logger
	// Memory budget for sort operators, 0 disables spilling
	MemoryLimit int64
	// Directory for spill files
	TempDir string
	// Statistics collector
	Stats *ExecStats
}

// Row represents a row of data.
type Row struct {
	Values []types.Value
}

// Schema represents the schema of a result set.
type Schema struct {
	Columns []Column
}

// Column represents a column in a schema.
type Column struct {
	Name     string
	Type     types.DataType
	Nullable bool
}

// ExecStats collects execution statistics.
type ExecStats struct {
	RowsRead     int64
	RowsReturned int64
	SpilledRuns  int64
	SpilledBytes int64
}

// SimpleRowIterator is a minimal row stream used by sort runs.
type SimpleRowIterator interface {
	Next() (*Row, error)
	Close() error
}

// Log returns the context logger, or the default logger when unset.
func (c *ExecContext) Log() log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// ColumnIndex resolves a column name in the schema.
func (s *Schema) ColumnIndex(name string) (int, bool) {
	for i, col := range s.Columns {
		if col.Name == name {
			return i, true
		}
	}
	return 0, false
}
