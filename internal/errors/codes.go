package errors

// Error codes, grouped by the subsystem that raises them. Codes are
// stable strings; messages are free to change.

// Join construction and evaluation
const (
	ArityMismatch   = "join_arity_mismatch"
	InputTooLarge   = "join_input_too_large"
	PredicateCount  = "join_predicate_count"
	NullJoinKey     = "join_null_key"
	InvalidOperator = "join_invalid_operator"
)

// Typed values and schemas
const (
	UndefinedColumn  = "undefined_column"
	DatatypeMismatch = "datatype_mismatch"
	InvalidTextValue = "invalid_text_value"
)

// Common error constructors

// ArityMismatchError reports predicate columns that describe different
// row populations for the same side
func ArityMismatchError(sideName string, n1, n2 int) *Error {
	return Newf(ArityMismatch, "predicate %s columns have different lengths: %d vs %d", sideName, n1, n2).
		WithHint("Both predicates must cover the same rows on each side.")
}

// InputTooLargeError reports a join whose combined input exceeds the
// rank domain
func InputTooLargeError(total int64) *Error {
	return Newf(InputTooLarge, "combined input of %d rows exceeds the supported maximum", total)
}

// PredicateCountError reports an unsupported number of join predicates
func PredicateCountError(got, want int) *Error {
	return Newf(PredicateCount, "join requires exactly %d inequality predicates, got %d", want, got)
}

// InvalidOperatorError reports a comparison operator outside <, <=, >, >=
func InvalidOperatorError(op string) *Error {
	return Newf(InvalidOperator, "unsupported inequality operator %q", op)
}

// NullJoinKeyError reports a NULL in an inequality join column
func NullJoinKeyError(column string, row int) *Error {
	return Newf(NullJoinKey, "null value in join column \"%s\" at row %d", column, row).
		WithColumn(column).
		WithHint("Filter NULLs out of inequality join inputs first.")
}

// UndefinedColumnError creates an undefined column error
func UndefinedColumnError(columnName string) *Error {
	return Newf(UndefinedColumn, "column \"%s\" does not exist", columnName).
		WithColumn(columnName)
}

// DatatypeMismatchError creates a data type mismatch error
func DatatypeMismatchError(expected, actual string) *Error {
	return Newf(DatatypeMismatch, "expected type %s but found %s", expected, actual).
		WithDataType(expected)
}

// InvalidTextValueError reports text that does not parse as the
// inferred column type
func InvalidTextValueError(dataType, value string) *Error {
	return Newf(InvalidTextValue, "invalid input syntax for type %s: \"%s\"", dataType, value).
		WithDataType(dataType)
}
