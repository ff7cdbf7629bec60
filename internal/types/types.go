package types

import (
	"fmt"
	"time"
)

// DataType identifies the type of a non-null value
type DataType int

const (
	Unknown DataType = iota
	Integer
	Double
	Text
	Boolean
	Timestamp
)

// String returns the name of the type
func (t DataType) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Double:
		return "DOUBLE"
	case Text:
		return "TEXT"
	case Boolean:
		return "BOOLEAN"
	case Timestamp:
		return "TIMESTAMP"
	default:
		return "UNKNOWN"
	}
}

// Value represents a typed value that can be NULL
type Value struct {
	Data interface{}
	Null bool
}

// NewValue creates a non-null value
func NewValue(data interface{}) Value {
	return Value{Data: data, Null: false}
}

// NewNullValue creates a null value
func NewNullValue() Value {
	return Value{Data: nil, Null: true}
}

// NewIntegerValue creates an integer value
func NewIntegerValue(v int64) Value {
	return NewValue(v)
}

// NewDoubleValue creates a double value
func NewDoubleValue(v float64) Value {
	return NewValue(v)
}

// NewTextValue creates a text value
func NewTextValue(s string) Value {
	return NewValue(s)
}

// NewBooleanValue creates a boolean value
func NewBooleanValue(b bool) Value {
	return NewValue(b)
}

// NewTimestampValue creates a timestamp value
func NewTimestampValue(ts time.Time) Value {
	return NewValue(ts)
}

// IsNull returns true if the value is NULL
func (v Value) IsNull() bool {
	return v.Null
}

// String returns a string representation of the value
func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	if ts, ok := v.Data.(time.Time); ok {
		return ts.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v.Data)
}

// Type returns the DataType of the value based on its underlying type
func (v Value) Type() DataType {
	if v.Null {
		return Unknown
	}
	switch v.Data.(type) {
	case int64:
		return Integer
	case float64:
		return Double
	case string:
		return Text
	case bool:
		return Boolean
	case time.Time:
		return Timestamp
	default:
		return Unknown
	}
}

// AsInt returns the value as an int64
func (v Value) AsInt() (int64, error) {
	if v.Null {
		return 0, fmt.Errorf("cannot convert NULL to int")
	}
	if i, ok := v.Data.(int64); ok {
		return i, nil
	}
	return 0, fmt.Errorf("cannot convert %T to int", v.Data)
}

// AsDouble returns the value as a float64
func (v Value) AsDouble() (float64, error) {
	if v.Null {
		return 0, fmt.Errorf("cannot convert NULL to double")
	}
	switch val := v.Data.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to double", v.Data)
	}
}

// AsString returns the value as a string
func (v Value) AsString() (string, error) {
	if v.Null {
		return "", fmt.Errorf("cannot convert NULL to string")
	}
	if s, ok := v.Data.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v.Data)
}

// AsBool returns the value as a boolean
func (v Value) AsBool() (bool, error) {
	if v.Null {
		return false, fmt.Errorf("cannot convert NULL to bool")
	}
	if b, ok := v.Data.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("cannot convert %T to bool", v.Data)
}

// AsTimestamp returns the value as a time.Time
func (v Value) AsTimestamp() (time.Time, error) {
	if v.Null {
		return time.Time{}, fmt.Errorf("cannot convert NULL to timestamp")
	}
	if ts, ok := v.Data.(time.Time); ok {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to timestamp", v.Data)
}

// Equal returns true if two values are equal
func (v Value) Equal(other Value) bool {
	return CompareValues(v, other) == 0
}

// CompareValues compares two values, handling NULLs
// NULL is considered less than any non-NULL value
func CompareValues(a, b Value) int {
	if a.Null && b.Null {
		return 0
	}
	if a.Null {
		return -1
	}
	if b.Null {
		return 1
	}
	switch v1 := a.Data.(type) {
	case int64:
		switch v2 := b.Data.(type) {
		case int64:
			return compareOrdered(v1, v2)
		case float64:
			return compareOrdered(float64(v1), v2)
		}
	case float64:
		switch v2 := b.Data.(type) {
		case float64:
			return compareOrdered(v1, v2)
		case int64:
			return compareOrdered(v1, float64(v2))
		}
	case string:
		if v2, ok := b.Data.(string); ok {
			return compareOrdered(v1, v2)
		}
	case bool:
		if v2, ok := b.Data.(bool); ok {
			switch {
			case !v1 && v2:
				return -1
			case v1 && !v2:
				return 1
			default:
				return 0
			}
		}
	case time.Time:
		if v2, ok := b.Data.(time.Time); ok {
			switch {
			case v1.Before(v2):
				return -1
			case v1.After(v2):
				return 1
			default:
				return 0
			}
		}
	}
	// For unsupported types or type mismatches, panic to catch bugs early
	panic(fmt.Sprintf("CompareValues: unsupported or mismatched types: %T vs %T", a.Data, b.Data))
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
