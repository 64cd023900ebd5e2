// Package columnar provides a pagelist source over the rows of a Parquet
// file that is sorted by one column.
//
// Cursors are row gap indices: cursor g lies between rows g-1 and g of the
// file. Filters are evaluated while scanning, so a selective filter makes a
// fetch read more rows than it returns.
package columnar

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Error sentinels.
var (
	// ErrSchemaViolation indicates an invalid schema, a record that does not
	// conform to it, or a file that lacks one of its columns.
	ErrSchemaViolation = errors.New("columnar: schema violation")

	// ErrInvalidFormat indicates bytes that are not a readable Parquet file.
	ErrInvalidFormat = errors.New("columnar: invalid format")
)

// Type enumerates the supported column types.
type Type int

const (
	Int32 Type = iota
	Int64
	Float32
	Float64
	String
	Bool
	Bytes
	Timestamp
	typeMax
)

var typeNames = [...]string{
	Int32:     "int32",
	Int64:     "int64",
	Float32:   "float32",
	Float64:   "float64",
	String:    "string",
	Bool:      "bool",
	Bytes:     "bytes",
	Timestamp: "timestamp",
}

func (t Type) String() string {
	if t >= 0 && t < typeMax {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType parses the name of a Type as returned by Type.String.
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == s {
			return Type(t), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown type %q", ErrSchemaViolation, s)
}

const (
	minInt32     = math.MinInt32
	maxInt32     = math.MaxInt32
	maxSafeInt64 = 1 << 53 // largest integer a float64 holds exactly
)

// Field is one column of a Schema.
type Field struct {
	Name     string
	Type     Type
	Nullable bool
}

// Schema describes the flat record layout of a file.
type Schema struct {
	Fields []Field
}

// Record is one decoded row keyed by field name. Values have the Go type of
// their column: int32, int64, float32, float64, string, bool, []byte or
// time.Time, or nil for a null.
type Record map[string]any

// Validate reports whether every field has a known type and a unique,
// non-empty name.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: schema has no fields", ErrSchemaViolation)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, field := range s.Fields {
		if field.Type < 0 || field.Type >= typeMax {
			return fmt.Errorf("%w: invalid type %d for field %q", ErrSchemaViolation, field.Type, field.Name)
		}
		if field.Name == "" {
			return fmt.Errorf("%w: field name cannot be empty", ErrSchemaViolation)
		}
		if seen[field.Name] {
			return fmt.Errorf("%w: duplicate field name %q", ErrSchemaViolation, field.Name)
		}
		seen[field.Name] = true
	}
	return nil
}

// ParseSchema parses a comma-separated list of name:type fields. A
// trailing "?" on the type marks the field nullable, as in
// "id:int64,name:string,score:float64?".
func ParseSchema(s string) (Schema, error) {
	var schema Schema
	for _, part := range strings.Split(s, ",") {
		name, typ, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return Schema{}, fmt.Errorf("%w: field %q is not name:type", ErrSchemaViolation, part)
		}
		nullable := strings.HasSuffix(typ, "?")
		t, err := ParseType(strings.TrimSuffix(typ, "?"))
		if err != nil {
			return Schema{}, err
		}
		schema.Fields = append(schema.Fields, Field{Name: name, Type: t, Nullable: nullable})
	}
	if err := schema.Validate(); err != nil {
		return Schema{}, err
	}
	return schema, nil
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// parquetSchema builds the parquet-go schema for s.
func (s Schema) parquetSchema() *parquet.Schema {
	group := make(parquet.Group, len(s.Fields))
	for _, field := range s.Fields {
		group[field.Name] = fieldNode(field)
	}
	return parquet.NewSchema("record", group)
}

func fieldNode(field Field) parquet.Node {
	var node parquet.Node
	switch field.Type {
	case Int32:
		node = parquet.Int(32)
	case Int64:
		node = parquet.Int(64)
	case Float32:
		node = parquet.Leaf(parquet.FloatType)
	case Float64:
		node = parquet.Leaf(parquet.DoubleType)
	case String:
		node = parquet.String()
	case Bool:
		node = parquet.Leaf(parquet.BooleanType)
	case Bytes:
		node = parquet.Leaf(parquet.ByteArrayType)
	case Timestamp:
		node = parquet.Timestamp(parquet.Nanosecond)
	default:
		panic(fmt.Sprintf("columnar: invalid type %d for field %q", field.Type, field.Name))
	}
	if field.Nullable {
		node = parquet.Optional(node)
	}
	return node
}

// -----------------------------------------------------------------------------
// Value conversion
// -----------------------------------------------------------------------------

// toValue converts a Go value into a parquet value of the field's type.
//
//nolint:gocyclo // one case per column type
func toValue(val any, field Field, index int) (parquet.Value, error) {
	mismatch := func() (parquet.Value, error) {
		return parquet.Value{}, fmt.Errorf("%w: record %d field %q: expected %s, got %T", ErrSchemaViolation, index, field.Name, field.Type, val)
	}
	overflow := func() (parquet.Value, error) {
		return parquet.Value{}, fmt.Errorf("%w: record %d field %q: value %v out of range for %s", ErrSchemaViolation, index, field.Name, val, field.Type)
	}

	switch field.Type {
	case Int32:
		switch v := val.(type) {
		case int:
			if v < minInt32 || v > maxInt32 {
				return overflow()
			}
			return parquet.Int32Value(int32(v)), nil
		case int32:
			return parquet.Int32Value(v), nil
		case int64:
			if v < minInt32 || v > maxInt32 {
				return overflow()
			}
			return parquet.Int32Value(int32(v)), nil
		case float64: // JSON numbers
			if math.Trunc(v) != v || v < minInt32 || v > maxInt32 {
				return overflow()
			}
			return parquet.Int32Value(int32(v)), nil
		}
		return mismatch()

	case Int64:
		switch v := val.(type) {
		case int:
			return parquet.Int64Value(int64(v)), nil
		case int32:
			return parquet.Int64Value(int64(v)), nil
		case int64:
			return parquet.Int64Value(v), nil
		case float64: // JSON numbers
			if math.Trunc(v) != v || v < -maxSafeInt64 || v > maxSafeInt64 {
				return overflow()
			}
			return parquet.Int64Value(int64(v)), nil
		}
		return mismatch()

	case Float32:
		switch v := val.(type) {
		case float32:
			return parquet.FloatValue(v), nil
		case float64:
			return parquet.FloatValue(float32(v)), nil
		}
		return mismatch()

	case Float64:
		switch v := val.(type) {
		case float32:
			return parquet.DoubleValue(float64(v)), nil
		case float64:
			return parquet.DoubleValue(v), nil
		}
		return mismatch()

	case String:
		if v, ok := val.(string); ok {
			return parquet.ByteArrayValue([]byte(v)), nil
		}
		return mismatch()

	case Bool:
		if v, ok := val.(bool); ok {
			return parquet.BooleanValue(v), nil
		}
		return mismatch()

	case Bytes:
		switch v := val.(type) {
		case []byte:
			return parquet.ByteArrayValue(v), nil
		case string:
			return parquet.ByteArrayValue([]byte(v)), nil
		}
		return mismatch()

	case Timestamp:
		switch v := val.(type) {
		case time.Time:
			return parquet.Int64Value(v.UnixNano()), nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return parquet.Value{}, fmt.Errorf("%w: record %d field %q: invalid timestamp: %w", ErrSchemaViolation, index, field.Name, err)
			}
			return parquet.Int64Value(t.UnixNano()), nil
		}
		return mismatch()
	}
	return mismatch()
}

// fromValue converts a parquet value back into the Go type of the field.
func fromValue(val parquet.Value, field Field) any {
	if val.IsNull() {
		return nil
	}
	switch field.Type {
	case Int32:
		return val.Int32()
	case Int64:
		return val.Int64()
	case Float32:
		return val.Float()
	case Float64:
		return val.Double()
	case String:
		return string(val.ByteArray())
	case Bool:
		return val.Boolean()
	case Bytes:
		return append([]byte(nil), val.ByteArray()...)
	case Timestamp:
		return time.Unix(0, val.Int64()).UTC()
	default:
		return nil
	}
}
