package table

import (
	"fmt"
	"time"
)

// Row is the accessor handed to predicates and compute functions. A
// lookup of an unknown column records ErrColumnNotFound, which the
// operator driving the row returns once the callback finishes.
type Row struct {
	t   *Table
	i   int
	err *error
}

// Index returns the row's position in its table.
func (r Row) Index() int { return r.i }

func (r Row) column(name string) *Column {
	c, err := r.t.Column(name)
	if err != nil {
		if r.err != nil && *r.err == nil {
			*r.err = fmt.Errorf("row %d: %w", r.i, err)
		}
		return nil
	}
	return c
}

// Value returns the raw value of the named column, nil for null.
func (r Row) Value(name string) any {
	if c := r.column(name); c != nil {
		return c.Value(r.i)
	}
	return nil
}

// IsNull reports whether the named column is null in this row.
func (r Row) IsNull(name string) bool {
	return r.Value(name) == nil
}

// Int returns the named column as an int64; ok is false for null and
// for a float with a fractional part.
func (r Row) Int(name string) (int64, bool) {
	if c := r.column(name); c != nil {
		return c.Int(r.i)
	}
	return 0, false
}

// Float returns the named column as a float64; ok is false for null.
func (r Row) Float(name string) (float64, bool) {
	if c := r.column(name); c != nil {
		return c.Float(r.i)
	}
	return 0, false
}

// String returns the named column as a string; ok is false for null.
func (r Row) String(name string) (string, bool) {
	if c := r.column(name); c != nil {
		return c.String(r.i)
	}
	return "", false
}

// Bool returns the named column as a bool; ok is false for null.
func (r Row) Bool(name string) (bool, bool) {
	if c := r.column(name); c != nil {
		return c.Bool(r.i)
	}
	return false, false
}

// Time returns the named column as a time.Time; ok is false for null.
func (r Row) Time(name string) (time.Time, bool) {
	if c := r.column(name); c != nil {
		return c.Time(r.i)
	}
	return time.Time{}, false
}
