package table

import (
	"fmt"
)

// DropNAOptions controls DropNA. Subset defaults to every column. With
// All set a row is dropped only when every subset value is null.
type DropNAOptions struct {
	Subset []string
	All    bool
}

// DropNA drops rows containing nulls.
func (t *Table) DropNA(opts DropNAOptions) (*Table, error) {
	cols := t.cols
	if len(opts.Subset) > 0 {
		var err error
		if cols, err = t.lookup(opts.Subset); err != nil {
			return nil, fmt.Errorf("drop_na: %w", err)
		}
	}
	if len(cols) == 0 {
		return t, nil
	}
	var nulls *Bitmap
	for _, c := range cols {
		m := NewBitmap(t.nrows)
		for i := 0; i < t.nrows; i++ {
			if c.IsNull(i) {
				m.Set(i)
			}
		}
		switch {
		case nulls == nil:
			nulls = m
		case opts.All:
			nulls = nulls.And(m)
		default:
			nulls = nulls.Or(m)
		}
	}
	return t.Mask(nulls.Not()), nil
}

// FillNA replaces nulls with value in the named columns. With no
// columns every column whose kind can hold value is filled.
func (t *Table) FillNA(value any, columns ...string) (*Table, error) {
	explicit := len(columns) > 0
	targets := t.cols
	if explicit {
		var err error
		if targets, err = t.lookup(columns); err != nil {
			return nil, fmt.Errorf("fill_na: %w", err)
		}
	}
	out := t
	for _, c := range targets {
		v, err := Normalize(c.Kind(), value)
		if err != nil {
			if explicit {
				return nil, fmt.Errorf("fill_na %s: %w", c.Name(), err)
			}
			continue
		}
		vals := c.Values()
		for i := range vals {
			if vals[i] == nil {
				vals[i] = v
			}
		}
		if out, err = out.WithColumnValues(newColumn(c.Name(), c.Kind(), vals)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
