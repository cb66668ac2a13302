// Package table provides an immutable in-memory table of named, typed,
// equal-length columns backed by dataframe-go series.
//
// Every operation returns a new Table and leaves its receiver untouched,
// so a table may be shared freely between goroutines.
package table

import (
	"fmt"

	dataframe "github.com/rocketlaunchr/dataframe-go"
)

// Table is an ordered set of named columns of equal length.
type Table struct {
	cols  []*Column
	index map[string]int
	nrows int
}

// New creates a table from columns. Column names must be unique and
// every column must have the same length.
func New(cols ...*Column) (*Table, error) {
	t := &Table{
		cols:  make([]*Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("%w: column %d is nil", ErrTypeMismatch, i)
		}
		if _, exists := t.index[c.Name()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name())
		}
		if i == 0 {
			t.nrows = c.Len()
		} else if c.Len() != t.nrows {
			return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrLengthMismatch, c.Name(), c.Len(), t.nrows)
		}
		t.index[c.Name()] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// Empty returns a zero-row table with the given schema.
func Empty(schema Schema) *Table {
	cols := make([]*Column, len(schema))
	for i, f := range schema {
		cols[i] = Nulls(f.Name, f.Kind, 0)
	}
	t, err := New(cols...)
	if err != nil {
		// Schema names are the only failure source.
		return &Table{index: map[string]int{}}
	}
	return t
}

// FromDataFrame converts a dataframe-go DataFrame.
func FromDataFrame(df *dataframe.DataFrame) (*Table, error) {
	if df == nil {
		return New()
	}
	cols := make([]*Column, len(df.Series))
	for i, s := range df.Series {
		c, err := FromSeries(s)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return New(cols...)
}

// DataFrame returns a dataframe-go DataFrame holding copies of the
// table's columns.
func (t *Table) DataFrame() *dataframe.DataFrame {
	series := make([]dataframe.Series, len(t.cols))
	for i, c := range t.cols {
		series[i] = c.Series()
	}
	return dataframe.NewDataFrame(series...)
}

// NRows returns the number of rows.
func (t *Table) NRows() int { return t.nrows }

// NCols returns the number of columns.
func (t *Table) NCols() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name()
	}
	return names
}

// Schema returns the table's schema.
func (t *Table) Schema() Schema {
	s := make(Schema, len(t.cols))
	for i, c := range t.cols {
		s[i] = c.Field()
	}
	return s
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return t.cols[i], nil
}

// ColumnAt returns the column at position i.
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// Columns returns the columns in order.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.cols...)
}

// Value returns the value of the named column at row i.
func (t *Table) Value(i int, name string) (any, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	return c.Value(i), nil
}

// Row returns the accessor for row i.
func (t *Table) Row(i int) Row {
	return Row{t: t, i: i}
}

// Take gathers rows by index into a new table. An index of -1 yields
// a row of nulls.
func (t *Table) Take(idx []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Take(idx)
	}
	return &Table{cols: cols, index: t.cloneIndex(), nrows: len(idx)}
}

// Mask keeps the rows set in mask.
func (t *Table) Mask(mask *Bitmap) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Mask(mask)
	}
	return &Table{cols: cols, index: t.cloneIndex(), nrows: mask.Count()}
}

func (t *Table) cloneIndex() map[string]int {
	idx := make(map[string]int, len(t.index))
	for k, v := range t.index {
		idx[k] = v
	}
	return idx
}

// lookup resolves names to columns.
func (t *Table) lookup(names []string) ([]*Column, error) {
	cols := make([]*Column, len(names))
	for i, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

// Lookup resolves names to columns, failing on the first unknown name.
func (t *Table) Lookup(names ...string) ([]*Column, error) {
	return t.lookup(names)
}

// KeyAt returns the tuple values of the given columns at row i.
func KeyAt(cols []*Column, i int) []any {
	vals := make([]any, len(cols))
	for j, c := range cols {
		vals[j] = c.Value(i)
	}
	return vals
}
