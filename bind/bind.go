// Package bind maps Go values onto the closed set of parameter categories a
// statement accepts, and converts each to the value handed to the driver.
//
// Categories are checked in a fixed priority order and the first match wins,
// so a type that satisfies several (a uuid.UUID is also a driver.Valuer) is
// always bound the same way. Types outside every category are rejected with
// ErrUnsupportedType instead of being passed through unchecked.
package bind

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ErrUnsupportedType is returned for values that fall in no category.
var ErrUnsupportedType = errors.New("unsupported parameter type")

// Category is the binding strategy chosen for a value.
type Category int

const (
	Unsupported Category = iota
	Null
	Identifier
	Int32
	Text
	Double
	Bool
	Float
	Int64
	TimeOfDayValue
	DateValue
	DateTime
	DecimalValue
	Binary
	EnumValue
	Native
)

var categoryNames = [...]string{
	Unsupported:    "unsupported",
	Null:           "null",
	Identifier:     "identifier",
	Int32:          "int32",
	Text:           "text",
	Double:         "double",
	Bool:           "bool",
	Float:          "float",
	Int64:          "int64",
	TimeOfDayValue: "time",
	DateValue:      "date",
	DateTime:       "datetime",
	DecimalValue:   "decimal",
	Binary:         "binary",
	EnumValue:      "enum",
	Native:         "native",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// Enum is implemented by enumerated constants. They bind as their name.
type Enum interface {
	EnumName() string
}

// Classify returns the category v binds as, or Unsupported.
func Classify(v any) Category {
	if isNull(v) {
		return Null
	}
	switch v.(type) {
	case uuid.UUID, ulid.ULID:
		return Identifier
	case int32, int16, int8, uint8, uint16:
		return Int32
	case string:
		return Text
	case float64:
		return Double
	case bool:
		return Bool
	case float32:
		return Float
	case int64, int, uint32, uint, uint64:
		return Int64
	case TimeOfDay:
		return TimeOfDayValue
	case Date:
		return DateValue
	case time.Time:
		return DateTime
	case Decimal:
		return DecimalValue
	case []byte, io.Reader:
		return Binary
	case Enum:
		return EnumValue
	case driver.Valuer:
		return Native
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return Classify(rv.Elem().Interface())
	}
	if base, ok := underlying(rv); ok {
		return Classify(base)
	}
	return Unsupported
}

// Value converts v into the value passed to the driver for its category.
// Readers are drained; callers that bind the same reader more than once
// must buffer it themselves.
func Value(v any) (any, error) {
	if isNull(v) {
		return nil, nil
	}
	switch val := v.(type) {
	case uuid.UUID:
		return val.String(), nil
	case ulid.ULID:
		return val.String(), nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case string:
		return val, nil
	case float64:
		return val, nil
	case bool:
		return val, nil
	case float32:
		return float64(val), nil
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint:
		return uintValue(uint64(val))
	case uint64:
		return uintValue(val)
	case TimeOfDay:
		return val.Value()
	case Date:
		return val.Value()
	case time.Time:
		return val, nil
	case Decimal:
		return val.Value()
	case []byte:
		return val, nil
	case io.Reader:
		b, err := io.ReadAll(val)
		if err != nil {
			return nil, fmt.Errorf("read binary parameter: %w", err)
		}
		return b, nil
	case Enum:
		return val.EnumName(), nil
	case driver.Valuer:
		return val, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return Value(rv.Elem().Interface())
	}
	if base, ok := underlying(rv); ok {
		return Value(base)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	case reflect.Slice:
		// A nil []byte is SQL NULL, as database/sql treats it.
		return rv.IsNil() && rv.Type().Elem().Kind() == reflect.Uint8
	}
	return false
}

func uintValue(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: uint64 value %d overflows int64", ErrUnsupportedType, u)
	}
	return int64(u), nil
}

// underlying converts a named type over a primitive kind (type Status string)
// to that primitive.
func underlying(rv reflect.Value) (any, bool) {
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int64:
		return rv.Int(), true
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return int32(rv.Int()), true
	case reflect.Uint8, reflect.Uint16:
		return int32(rv.Uint()), true
	case reflect.Uint, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Float32:
		return float32(rv.Float()), true
	case reflect.Float64:
		return rv.Float(), true
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), true
		}
	}
	return nil, false
}
