package executor

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/dshills/QuantaJoin/internal/errors"
	"github.com/dshills/QuantaJoin/internal/types"
)

// CSVScanOperator reads rows from a CSV file with a header row. Column
// types are inferred from the data: a column anchors on the type of
// its first non-empty field (integer, then double, then text) and
// integers widen to double when a later field requires it. A field
// that fits neither the anchored type nor the widening is rejected.
// Empty fields are NULL.
type CSVScanOperator struct {
	baseOperator
	path     string
	rows     []*Row
	position int
}

// NewCSVScanOperator loads a CSV file and infers its schema.
func NewCSVScanOperator(path string) (*CSVScanOperator, error) {
	schema, rows, err := loadCSV(path)
	if err != nil {
		return nil, err
	}

	return &CSVScanOperator{
		baseOperator: baseOperator{
			schema: schema,
		},
		path: path,
		rows: rows,
	}, nil
}

// Open initializes the scan.
func (s *CSVScanOperator) Open(ctx *ExecContext) error {
	s.ctx = ctx
	s.position = 0
	return nil
}

// Next returns the next row.
func (s *CSVScanOperator) Next() (*Row, error) {
	if s.position >= len(s.rows) {
		return nil, nil // nolint:nilnil // EOF
	}

	row := s.rows[s.position]
	s.position++

	if s.ctx.Stats != nil {
		s.ctx.Stats.RowsRead++
	}

	return row, nil
}

// Close cleans up the scan.
func (s *CSVScanOperator) Close() error {
	return nil
}

// loadCSV parses the file into a schema and typed rows.
func loadCSV(path string) (*Schema, []*Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse csv file %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("csv file %s has no header row", path)
	}

	header := records[0]
	data := records[1:]

	kinds, nullable, err := inferColumnTypes(header, data)
	if err != nil {
		return nil, nil, err
	}

	schema := &Schema{
		Columns: make([]Column, len(header)),
	}
	for i, name := range header {
		schema.Columns[i] = Column{
			Name:     name,
			Type:     kinds[i],
			Nullable: nullable[i],
		}
	}

	rows := make([]*Row, len(data))
	for i, record := range data {
		values := make([]types.Value, len(record))
		for j, field := range record {
			v, err := parseField(field, kinds[j], header[j])
			if err != nil {
				return nil, nil, err
			}
			values[j] = v
		}
		rows[i] = &Row{Values: values}
	}

	return schema, rows, nil
}

// inferColumnTypes anchors each column on its first non-empty field
// and widens integers to doubles as needed.
func inferColumnTypes(header []string, data [][]string) ([]types.DataType, []bool, error) {
	kinds := make([]types.DataType, len(header))
	nullable := make([]bool, len(header))
	for i := range kinds {
		kinds[i] = types.Unknown
	}

	for _, record := range data {
		for j, field := range record {
			if field == "" {
				nullable[j] = true
				continue
			}

			switch kinds[j] {
			case types.Unknown:
				kinds[j] = classifyField(field)
			case types.Integer:
				if _, err := strconv.ParseInt(field, 10, 64); err == nil {
					continue
				}
				if _, err := strconv.ParseFloat(field, 64); err == nil {
					kinds[j] = types.Double
					continue
				}
				return nil, nil, errors.InvalidTextValueError(types.Integer.String(), field).
					WithColumn(header[j])
			case types.Double:
				if _, err := strconv.ParseFloat(field, 64); err != nil {
					return nil, nil, errors.InvalidTextValueError(types.Double.String(), field).
						WithColumn(header[j])
				}
			case types.Text:
				// Everything is text
			}
		}
	}

	// Columns with no data default to text
	for i := range kinds {
		if kinds[i] == types.Unknown {
			kinds[i] = types.Text
			nullable[i] = true
		}
	}

	return kinds, nullable, nil
}

// classifyField places one field on the integer, double, text ladder.
func classifyField(field string) types.DataType {
	if _, err := strconv.ParseInt(field, 10, 64); err == nil {
		return types.Integer
	}
	if _, err := strconv.ParseFloat(field, 64); err == nil {
		return types.Double
	}
	return types.Text
}

// parseField converts a field under the column's inferred type.
func parseField(field string, kind types.DataType, column string) (types.Value, error) {
	if field == "" {
		return types.NewNullValue(), nil
	}

	switch kind {
	case types.Integer:
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return types.Value{}, errors.InvalidTextValueError(kind.String(), field).WithColumn(column)
		}
		return types.NewIntegerValue(n), nil
	case types.Double:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return types.Value{}, errors.InvalidTextValueError(kind.String(), field).WithColumn(column)
		}
		return types.NewDoubleValue(f), nil
	default:
		return types.NewTextValue(field), nil
	}
}
