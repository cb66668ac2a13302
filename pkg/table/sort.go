package table

import (
	"fmt"
	"math/rand"
	"sort"
)

// SortKey orders rows by one column.
type SortKey struct {
	Column     string
	Descending bool
}

// Asc and Desc are shorthands for building sort keys.
func Asc(name string) SortKey  { return SortKey{Column: name} }
func Desc(name string) SortKey { return SortKey{Column: name, Descending: true} }

// Sort orders rows by keys. The sort is stable and nulls sort last in
// either direction.
func (t *Table) Sort(keys ...SortKey) (*Table, error) {
	idx, err := t.SortIndex(keys...)
	if err != nil {
		return nil, err
	}
	return t.Take(idx), nil
}

// SortIndex returns the row permutation Sort would apply.
func (t *Table) SortIndex(keys ...SortKey) ([]int, error) {
	cols := make([]*Column, len(keys))
	for i, k := range keys {
		c, err := t.Column(k.Column)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		cols[i] = c
	}
	idx := seq(0, t.nrows)
	sort.SliceStable(idx, func(a, b int) bool {
		for i, c := range cols {
			va, vb := c.Value(idx[a]), c.Value(idx[b])
			if va == nil || vb == nil {
				if va == nil && vb == nil {
					continue
				}
				return vb == nil
			}
			cmp := Compare(va, vb)
			if cmp == 0 {
				continue
			}
			if keys[i].Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return idx, nil
}

// NLargest returns the n rows with the largest non-null values in the
// column, largest first.
func (t *Table) NLargest(n int, column string) (*Table, error) {
	return t.extremes(n, column, true)
}

// NSmallest returns the n rows with the smallest non-null values in
// the column, smallest first.
func (t *Table) NSmallest(n int, column string) (*Table, error) {
	return t.extremes(n, column, false)
}

func (t *Table) extremes(n int, column string, desc bool) (*Table, error) {
	c, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	mask := NewBitmap(t.nrows)
	for i := 0; i < t.nrows; i++ {
		if !c.IsNull(i) {
			mask.Set(i)
		}
	}
	sorted, err := t.Mask(mask).Sort(SortKey{Column: column, Descending: desc})
	if err != nil {
		return nil, err
	}
	return sorted.Head(n), nil
}

// SampleOptions selects rows without replacement. Exactly one of N or
// Fraction is used; Fraction applies when UseFraction is set.
type SampleOptions struct {
	N           int
	Fraction    float64
	UseFraction bool
	Seed        int64
}

// Sample draws rows without replacement, deterministically for a seed.
// Sampled rows keep their relative input order.
func (t *Table) Sample(opts SampleOptions) (*Table, error) {
	n := opts.N
	if opts.UseFraction {
		if opts.Fraction < 0 || opts.Fraction > 1 {
			return nil, fmt.Errorf("%w: fraction %g not in [0,1]", ErrInvalidSampleSize, opts.Fraction)
		}
		n = int(opts.Fraction*float64(t.nrows) + 0.5)
	}
	if n < 0 || n > t.nrows {
		return nil, fmt.Errorf("%w: %d rows requested from %d", ErrInvalidSampleSize, n, t.nrows)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	idx := rng.Perm(t.nrows)[:n]
	sort.Ints(idx)
	return t.Take(idx), nil
}
