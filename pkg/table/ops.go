package table

import (
	"fmt"
)

// Select projects the table onto names, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	cols, err := t.lookup(names)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	out.nrows = t.nrows
	return out, nil
}

// Drop removes the named columns.
func (t *Table) Drop(names ...string) (*Table, error) {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		if !t.HasColumn(name) {
			return nil, fmt.Errorf("drop: %w: %s", ErrColumnNotFound, name)
		}
		drop[name] = struct{}{}
	}
	keep := make([]*Column, 0, len(t.cols))
	for _, c := range t.cols {
		if _, ok := drop[c.Name()]; !ok {
			keep = append(keep, c)
		}
	}
	out, err := New(keep...)
	if err != nil {
		return nil, err
	}
	out.nrows = t.nrows
	return out, nil
}

// Rename renames columns according to a mapping from old to new name.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	for old := range mapping {
		if !t.HasColumn(old) {
			return nil, fmt.Errorf("rename: %w: %s", ErrColumnNotFound, old)
		}
	}
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		if name, ok := mapping[c.Name()]; ok && name != c.Name() {
			cols[i] = c.Rename(name)
		} else {
			cols[i] = c
		}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, fmt.Errorf("rename: %w", err)
	}
	out.nrows = t.nrows
	return out, nil
}

// Filter keeps the rows for which pred returns true.
func (t *Table) Filter(pred func(Row) bool) (*Table, error) {
	var rowErr error
	mask := NewBitmap(t.nrows)
	for i := 0; i < t.nrows; i++ {
		if pred(Row{t: t, i: i, err: &rowErr}) {
			mask.Set(i)
		}
		if rowErr != nil {
			return nil, fmt.Errorf("filter: %w", rowErr)
		}
	}
	return t.Mask(mask), nil
}

// WithColumn adds or replaces the named column with values computed
// per row. A replaced column keeps its position; a new one is appended.
func (t *Table) WithColumn(name string, kind Kind, compute func(Row) any) (*Table, error) {
	var rowErr error
	vals := make([]any, t.nrows)
	for i := 0; i < t.nrows; i++ {
		v := compute(Row{t: t, i: i, err: &rowErr})
		if rowErr != nil {
			return nil, fmt.Errorf("with_column %s: %w", name, rowErr)
		}
		nv, err := Normalize(kind, v)
		if err != nil {
			return nil, fmt.Errorf("with_column %s row %d: %w", name, i, err)
		}
		vals[i] = nv
	}
	return t.WithColumnValues(newColumn(name, kind, vals))
}

// WithColumnValues adds or replaces a column with a precomputed,
// row-aligned column.
func (t *Table) WithColumnValues(col *Column) (*Table, error) {
	if len(t.cols) > 0 && col.Len() != t.nrows {
		return nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrLengthMismatch, col.Name(), col.Len(), t.nrows)
	}
	cols := append([]*Column(nil), t.cols...)
	if i, ok := t.index[col.Name()]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols...)
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	n = clamp(n, t.nrows)
	return t.Take(seq(0, n))
}

// Tail returns the last n rows.
func (t *Table) Tail(n int) *Table {
	n = clamp(n, t.nrows)
	return t.Take(seq(t.nrows-n, t.nrows))
}

// Slice returns rows [from, to).
func (t *Table) Slice(from, to int) *Table {
	from = clamp(from, t.nrows)
	to = clamp(to, t.nrows)
	if to < from {
		to = from
	}
	return t.Take(seq(from, to))
}

func clamp(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
