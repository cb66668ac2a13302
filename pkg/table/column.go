package table

import (
	"fmt"
	"math"
	"time"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// Column is a read-only typed view of one named column. The backing
// dataframe-go series is never handed out, so a Column cannot change
// once built.
type Column struct {
	series dataframe.Series
	kind   Kind
}

// NewColumn creates a column of the given kind. Values are normalized
// with Normalize.
func NewColumn(name string, kind Kind, values []any) (*Column, error) {
	vals := make([]any, len(values))
	for i, v := range values {
		nv, err := Normalize(kind, v)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %w", name, i, err)
		}
		vals[i] = nv
	}
	return newColumn(name, kind, vals), nil
}

// newColumn builds the backing series from already normalized values.
func newColumn(name string, kind Kind, vals []any) *Column {
	var s dataframe.Series
	switch kind {
	case KindInt:
		s = dataframe.NewSeriesInt64(name, nil, vals...)
	case KindFloat:
		s = dataframe.NewSeriesFloat64(name, nil, vals...)
	case KindString:
		s = dataframe.NewSeriesString(name, nil, vals...)
	case KindBool:
		s = dataframe.NewSeriesGeneric(name, false, nil, vals...)
	case KindTime:
		s = dataframe.NewSeriesTime(name, nil, vals...)
	}
	return &Column{series: s, kind: kind}
}

// FromSeries wraps a copy of a dataframe-go series. Mixed or unknown
// series are rendered as strings.
func FromSeries(s dataframe.Series) (*Column, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil series", ErrTypeMismatch)
	}
	if kind, ok := seriesKind(s); ok {
		return &Column{series: s.Copy(), kind: kind}, nil
	}
	n := s.NRows()
	vals := make([]any, n)
	for i := 0; i < n; i++ {
		if v := s.Value(i); v != nil {
			vals[i] = fmt.Sprint(v)
		}
	}
	return newColumn(s.Name(), KindString, vals), nil
}

func mustColumn(name string, kind Kind, vals []any) *Column {
	c, err := NewColumn(name, kind, vals)
	if err != nil {
		panic(err)
	}
	return c
}

// Ints builds an int column from literals. It panics if a value is not
// an integer or nil.
func Ints(name string, vals ...any) *Column { return mustColumn(name, KindInt, vals) }

// Floats builds a float column from literals.
func Floats(name string, vals ...any) *Column { return mustColumn(name, KindFloat, vals) }

// Strings builds a string column from literals.
func Strings(name string, vals ...any) *Column { return mustColumn(name, KindString, vals) }

// Bools builds a bool column from literals.
func Bools(name string, vals ...any) *Column { return mustColumn(name, KindBool, vals) }

// Times builds a time column from literals.
func Times(name string, vals ...any) *Column { return mustColumn(name, KindTime, vals) }

// Name returns the column name.
func (c *Column) Name() string { return c.series.Name() }

// Kind returns the column kind.
func (c *Column) Kind() Kind { return c.kind }

// Field returns the schema field describing the column.
func (c *Column) Field() Field { return Field{Name: c.Name(), Kind: c.kind} }

// Len returns the number of rows.
func (c *Column) Len() int { return c.series.NRows() }

// Value returns the value at row i, or nil for null.
func (c *Column) Value(i int) any {
	if i < 0 || i >= c.Len() {
		return nil
	}
	return c.series.Value(i)
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool { return c.Value(i) == nil }

// NullCount returns the number of null rows.
func (c *Column) NullCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Int returns the value at row i as an int64. A float converts only
// when it is integral and within int64 range.
func (c *Column) Int(i int) (int64, bool) {
	switch v := c.Value(i).(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return int64(v), true
		}
	}
	return 0, false
}

// Float returns the value at row i as a float64. Int values convert.
func (c *Column) Float(i int) (float64, bool) {
	switch v := c.Value(i).(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// String returns the value at row i as a string.
func (c *Column) String(i int) (string, bool) {
	s, ok := c.Value(i).(string)
	return s, ok
}

// Bool returns the value at row i as a bool.
func (c *Column) Bool(i int) (bool, bool) {
	b, ok := c.Value(i).(bool)
	return b, ok
}

// Time returns the value at row i as a time.Time.
func (c *Column) Time(i int) (time.Time, bool) {
	t, ok := c.Value(i).(time.Time)
	return t, ok
}

// Values returns a copy of all values.
func (c *Column) Values() []any {
	out := make([]any, c.Len())
	for i := range out {
		out[i] = c.Value(i)
	}
	return out
}

// Floats returns the numeric values with NaN standing in for nulls.
func (c *Column) Floats() []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		if f, ok := c.Float(i); ok {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Rename returns a copy of the column under a new name.
func (c *Column) Rename(name string) *Column {
	s := c.series.Copy()
	s.Rename(name)
	return &Column{series: s, kind: c.kind}
}

// Series returns a copy of the backing dataframe-go series.
func (c *Column) Series() dataframe.Series { return c.series.Copy() }

// Take gathers rows by index. An index of -1 yields a null.
func (c *Column) Take(idx []int) *Column {
	vals := make([]any, len(idx))
	for i, j := range idx {
		if j >= 0 {
			vals[i] = c.Value(j)
		}
	}
	return newColumn(c.Name(), c.kind, vals)
}

// Mask keeps the rows set in mask.
func (c *Column) Mask(mask *Bitmap) *Column {
	vals := make([]any, 0, mask.Count())
	for i := 0; i < c.Len(); i++ {
		if mask.Has(i) {
			vals = append(vals, c.Value(i))
		}
	}
	return newColumn(c.Name(), c.kind, vals)
}

// Nulls returns a column of n nulls.
func Nulls(name string, kind Kind, n int) *Column {
	return newColumn(name, kind, make([]any, n))
}
