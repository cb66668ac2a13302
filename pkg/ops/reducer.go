package ops

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/akhildatla/tabular/pkg/table"
)

// Reducer collapses a sequence of values to one summary value. Every
// reducer skips nulls.
type Reducer string

const (
	Count   Reducer = "count"
	Sum     Reducer = "sum"
	Mean    Reducer = "mean"
	Min     Reducer = "min"
	Max     Reducer = "max"
	Std     Reducer = "std"
	NUnique Reducer = "nunique"
	First   Reducer = "first"
	Last    Reducer = "last"
	Median  Reducer = "median"
)

var reducers = map[string]Reducer{
	"count":   Count,
	"size":    Count,
	"sum":     Sum,
	"mean":    Mean,
	"avg":     Mean,
	"min":     Min,
	"max":     Max,
	"std":     Std,
	"nunique": NUnique,
	"first":   First,
	"last":    Last,
	"median":  Median,
}

// ParseReducer resolves a reducer by name.
func ParseReducer(name string) (Reducer, error) {
	if r, ok := reducers[strings.ToLower(name)]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownReducer, name)
}

// Kind returns the kind of the reducer's result for a source kind.
func (r Reducer) Kind(src table.Kind) table.Kind {
	switch r {
	case Count, NUnique:
		return table.KindInt
	case Sum:
		if src == table.KindInt || src == table.KindBool {
			return table.KindInt
		}
		return table.KindFloat
	case Mean, Std, Median:
		return table.KindFloat
	}
	return src
}

// numeric reports whether the reducer needs numeric input.
func (r Reducer) numeric() bool {
	switch r {
	case Sum, Mean, Std, Median:
		return true
	}
	return false
}

// Check validates that the reducer applies to a source kind.
func (r Reducer) Check(src table.Kind) error {
	if _, ok := reducers[string(r)]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReducer, r)
	}
	if r.numeric() && !src.Numeric() && src != table.KindBool {
		return fmt.Errorf("%w: %s of %s column", ErrTypeMismatch, r, src)
	}
	return nil
}

// Reduce applies the reducer to the given rows of c.
func (r Reducer) Reduce(c *table.Column, rows []int) any {
	vals := make([]any, 0, len(rows))
	for _, i := range rows {
		if v := c.Value(i); v != nil {
			vals = append(vals, v)
		}
	}
	return r.apply(vals, c.Kind())
}

// ReduceAll applies the reducer to every row of c.
func (r Reducer) ReduceAll(c *table.Column) any {
	rows := make([]int, c.Len())
	for i := range rows {
		rows[i] = i
	}
	return r.Reduce(c, rows)
}

// apply reduces non-null values of a source kind.
func (r Reducer) apply(vals []any, kind table.Kind) any {
	switch r {
	case Count:
		return int64(len(vals))
	case NUnique:
		seen := make(map[string]struct{}, len(vals))
		for _, v := range vals {
			seen[table.Key(v)] = struct{}{}
		}
		return int64(len(seen))
	case First:
		if len(vals) == 0 {
			return nil
		}
		return vals[0]
	case Last:
		if len(vals) == 0 {
			return nil
		}
		return vals[len(vals)-1]
	case Min, Max:
		if len(vals) == 0 {
			return nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c := table.Compare(v, best)
			if (r == Min && c < 0) || (r == Max && c > 0) {
				best = v
			}
		}
		return best
	case Sum:
		if kind == table.KindInt || kind == table.KindBool {
			var s int64
			for _, v := range vals {
				switch x := v.(type) {
				case int64:
					s += x
				case bool:
					if x {
						s++
					}
				}
			}
			return s
		}
		return floats.Sum(toFloats(vals))
	case Mean:
		if len(vals) == 0 {
			return nil
		}
		return stat.Mean(toFloats(vals), nil)
	case Std:
		if len(vals) < 2 {
			return nil
		}
		return stat.StdDev(toFloats(vals), nil)
	case Median:
		if len(vals) == 0 {
			return nil
		}
		xs := toFloats(vals)
		sort.Float64s(xs)
		mid := len(xs) / 2
		if len(xs)%2 == 1 {
			return xs[mid]
		}
		return (xs[mid-1] + xs[mid]) / 2
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	}
	return math.NaN(), false
}

func toFloats(vals []any) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := asFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}
