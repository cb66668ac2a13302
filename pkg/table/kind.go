package table

import (
	"fmt"
	"strings"
	"time"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// Kind is the semantic type of a column. Every kind admits null cells.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
	KindTime
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Numeric reports whether values of the kind take part in arithmetic.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// ParseKind parses the name of a kind as produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "int", "int64":
		return KindInt, nil
	case "float", "float64":
		return KindFloat, nil
	case "string":
		return KindString, nil
	case "bool":
		return KindBool, nil
	case "time", "date", "datetime":
		return KindTime, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrTypeMismatch, s)
}

// KindOf returns the kind a Go value is stored as.
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return KindInt, true
	case float32, float64:
		return KindFloat, true
	case string:
		return KindString, true
	case bool:
		return KindBool, true
	case time.Time:
		return KindTime, true
	}
	return 0, false
}

// seriesKind maps a dataframe-go series onto a Kind.
func seriesKind(s dataframe.Series) (Kind, bool) {
	switch st := s.(type) {
	case *dataframe.SeriesInt64:
		return KindInt, true
	case *dataframe.SeriesFloat64:
		return KindFloat, true
	case *dataframe.SeriesString:
		return KindString, true
	case *dataframe.SeriesTime:
		return KindTime, true
	case *dataframe.SeriesGeneric:
		if st.Type() == "bool" {
			return KindBool, true
		}
	}
	return 0, false
}

// Field describes one column of a schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered list of fields of a table.
type Schema []Field

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named field.
func (s Schema) Index(name string) (int, error) {
	for i, f := range s {
		if f.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, error) {
	i, err := s.Index(name)
	if err != nil {
		return Field{}, err
	}
	return s[i], nil
}

// String renders the schema as "name:kind" pairs.
func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Name + ":" + f.Kind.String()
	}
	return strings.Join(parts, ", ")
}
