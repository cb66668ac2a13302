package table

import (
	"fmt"
)

// Concat stacks tables vertically. Columns are matched by name in
// first-appearance order; a column missing from a table is null-filled
// for its rows. Int and float columns of the same name widen to float.
func Concat(tables ...*Table) (*Table, error) {
	var schema Schema
	pos := map[string]int{}
	total := 0
	for _, t := range tables {
		total += t.nrows
		for _, c := range t.cols {
			i, seen := pos[c.Name()]
			if !seen {
				pos[c.Name()] = len(schema)
				schema = append(schema, c.Field())
				continue
			}
			k, err := unify(schema[i].Kind, c.Kind())
			if err != nil {
				return nil, fmt.Errorf("concat %s: %w", c.Name(), err)
			}
			schema[i].Kind = k
		}
	}
	cols := make([]*Column, len(schema))
	for i, f := range schema {
		vals := make([]any, 0, total)
		for _, t := range tables {
			c, err := t.Column(f.Name)
			if err != nil {
				vals = append(vals, make([]any, t.nrows)...)
				continue
			}
			for r := 0; r < t.nrows; r++ {
				v, err := Normalize(f.Kind, c.Value(r))
				if err != nil {
					return nil, fmt.Errorf("concat %s: %w", f.Name, err)
				}
				vals = append(vals, v)
			}
		}
		cols[i] = newColumn(f.Name, f.Kind, vals)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.nrows = total
	return out, nil
}

// HConcat places tables side by side. Shorter tables are padded with
// null rows; a repeated column name is ErrDuplicateColumn.
func HConcat(tables ...*Table) (*Table, error) {
	rows := 0
	for _, t := range tables {
		rows = max(rows, t.nrows)
	}
	var cols []*Column
	for _, t := range tables {
		padded := t
		if t.nrows < rows {
			idx := seq(0, rows)
			for i := t.nrows; i < rows; i++ {
				idx[i] = -1
			}
			padded = t.Take(idx)
		}
		cols = append(cols, padded.cols...)
	}
	return New(cols...)
}

// unify returns the kind that can hold values of both a and b.
func unify(a, b Kind) (Kind, error) {
	if a == b {
		return a, nil
	}
	if a.Numeric() && b.Numeric() {
		return KindFloat, nil
	}
	return 0, fmt.Errorf("%w: %s and %s", ErrTypeMismatch, a, b)
}

// Unify returns the common kind of the given kinds.
func Unify(kinds ...Kind) (Kind, error) {
	if len(kinds) == 0 {
		return KindFloat, nil
	}
	k := kinds[0]
	for _, other := range kinds[1:] {
		var err error
		if k, err = unify(k, other); err != nil {
			return 0, err
		}
	}
	return k, nil
}
