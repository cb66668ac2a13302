package ops

import (
	"fmt"

	"github.com/akhildatla/tabular/pkg/table"
)

// Aggregation names one output column of GroupAggregate. An empty
// Source with Count counts rows.
type Aggregation struct {
	Output  string
	Source  string
	Reducer Reducer
}

// Agg is shorthand for building an Aggregation.
func Agg(output, source string, r Reducer) Aggregation {
	return Aggregation{Output: output, Source: source, Reducer: r}
}

func (a Aggregation) name() string {
	if a.Output != "" {
		return a.Output
	}
	if a.Source == "" {
		return string(a.Reducer)
	}
	return a.Source + "_" + string(a.Reducer)
}

// Grouping partitions row indices by key tuple. Groups are kept in
// first-appearance order and null keys group together.
type Grouping struct {
	Keys  []string
	Rows  [][]int
	First []int
}

// GroupRows partitions n rows by the values of cols.
func GroupRows(cols []*table.Column, n int) *Grouping {
	g := &Grouping{}
	pos := make(map[string]int)
	for i := 0; i < n; i++ {
		key := table.Key(table.KeyAt(cols, i)...)
		p, ok := pos[key]
		if !ok {
			p = len(g.Keys)
			pos[key] = p
			g.Keys = append(g.Keys, key)
			g.Rows = append(g.Rows, nil)
			g.First = append(g.First, i)
		}
		g.Rows[p] = append(g.Rows[p], i)
	}
	return g
}

// Len returns the number of groups.
func (g *Grouping) Len() int { return len(g.Keys) }

func groupBy(t *table.Table, by []string) ([]*table.Column, *Grouping, error) {
	keys, err := t.Lookup(by...)
	if err != nil {
		return nil, nil, err
	}
	if len(by) == 0 {
		all := make([]int, t.NRows())
		for i := range all {
			all[i] = i
		}
		return nil, &Grouping{Keys: []string{""}, Rows: [][]int{all}, First: []int{0}}, nil
	}
	return keys, GroupRows(keys, t.NRows()), nil
}

// GroupAggregate reduces each group of rows sharing the by tuple to one
// row. Output columns are the by columns followed by one column per
// aggregation, in first-appearance order of the groups. An empty by
// reduces the whole table to a single row.
func GroupAggregate(t *table.Table, by []string, aggs []Aggregation) (*table.Table, error) {
	keys, g, err := groupBy(t, by)
	if err != nil {
		return nil, fmt.Errorf("group_aggregate: %w", err)
	}

	cols := make([]*table.Column, 0, len(by)+len(aggs))
	for _, k := range keys {
		cols = append(cols, k.Take(g.First))
	}
	for _, a := range aggs {
		c, err := aggregate(t, g, a)
		if err != nil {
			return nil, fmt.Errorf("group_aggregate: %w", err)
		}
		cols = append(cols, c)
	}
	out, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("group_aggregate: %w", err)
	}
	return out, nil
}

func aggregate(t *table.Table, g *Grouping, a Aggregation) (*table.Column, error) {
	vals := make([]any, g.Len())
	if a.Source == "" {
		if a.Reducer != Count {
			return nil, fmt.Errorf("%w: %s needs a source column", ErrUnknownReducer, a.Reducer)
		}
		for i, rows := range g.Rows {
			vals[i] = int64(len(rows))
		}
		return table.NewColumn(a.name(), table.KindInt, vals)
	}
	src, err := t.Column(a.Source)
	if err != nil {
		return nil, err
	}
	if err := a.Reducer.Check(src.Kind()); err != nil {
		return nil, err
	}
	for i, rows := range g.Rows {
		vals[i] = a.Reducer.Reduce(src, rows)
	}
	return table.NewColumn(a.name(), a.Reducer.Kind(src.Kind()), vals)
}

// Transform computes the group aggregate of source and broadcasts it to
// every row of the group. The result is aligned to the input rows and
// named after the source column.
func Transform(t *table.Table, by []string, source string, r Reducer) (*table.Column, error) {
	_, g, err := groupBy(t, by)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	src, err := t.Column(source)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	if err := r.Check(src.Kind()); err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	vals := make([]any, t.NRows())
	for _, rows := range g.Rows {
		v := r.Reduce(src, rows)
		for _, i := range rows {
			vals[i] = v
		}
	}
	return table.NewColumn(source, r.Kind(src.Kind()), vals)
}

// ValueCounts counts rows per distinct value of column, most frequent
// first with ties in first-appearance order. Nulls are not counted.
// With normalize the counts become shares of the non-null rows.
func ValueCounts(t *table.Table, column string, normalize bool) (*table.Table, error) {
	src, err := t.Column(column)
	if err != nil {
		return nil, fmt.Errorf("value_counts: %w", err)
	}
	nonNull, err := t.DropNA(table.DropNAOptions{Subset: []string{column}})
	if err != nil {
		return nil, err
	}
	counted, err := GroupAggregate(nonNull, []string{column}, []Aggregation{Agg("count", "", Count)})
	if err != nil {
		return nil, err
	}
	sorted, err := counted.Sort(table.Desc("count"))
	if err != nil {
		return nil, err
	}
	if !normalize {
		return sorted, nil
	}
	total := float64(src.Len() - src.NullCount())
	return sorted.WithColumn("proportion", table.KindFloat, func(r table.Row) any {
		n, _ := r.Float("count")
		return n / total
	})
}

// Describe summarizes numeric columns with count, mean, std, min and
// max. The result has a "stat" column and one column per described
// column. With no columns every numeric column is described.
func Describe(t *table.Table, columns ...string) (*table.Table, error) {
	if len(columns) == 0 {
		for _, f := range t.Schema() {
			if f.Kind.Numeric() {
				columns = append(columns, f.Name)
			}
		}
	}
	stats := []Reducer{Count, Mean, Std, Min, Max}
	labels := make([]any, len(stats))
	for i, r := range stats {
		labels[i] = string(r)
	}
	cols := []*table.Column{table.Strings("stat", labels...)}
	for _, name := range columns {
		c, err := t.Column(name)
		if err != nil {
			return nil, fmt.Errorf("describe: %w", err)
		}
		if !c.Kind().Numeric() {
			return nil, fmt.Errorf("describe %s: %w: %s column", name, ErrTypeMismatch, c.Kind())
		}
		vals := make([]any, len(stats))
		for i, r := range stats {
			v := r.ReduceAll(c)
			if f, ok := asFloat(v); ok {
				vals[i] = f
			}
		}
		col, err := table.NewColumn(name, table.KindFloat, vals)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return table.New(cols...)
}

// IdxMax returns, for each group, the row holding the group's largest
// value of column. The first such row wins ties; groups whose values are
// all null are skipped.
func IdxMax(t *table.Table, by []string, column string) (*table.Table, error) {
	return extremeRows(t, by, column, 1)
}

// IdxMin is IdxMax for the smallest value.
func IdxMin(t *table.Table, by []string, column string) (*table.Table, error) {
	return extremeRows(t, by, column, -1)
}

func extremeRows(t *table.Table, by []string, column string, sign int) (*table.Table, error) {
	_, g, err := groupBy(t, by)
	if err != nil {
		return nil, err
	}
	src, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	var picked []int
	for _, rows := range g.Rows {
		best := -1
		for _, i := range rows {
			v := src.Value(i)
			if v == nil {
				continue
			}
			if best < 0 || table.Compare(v, src.Value(best))*sign > 0 {
				best = i
			}
		}
		if best >= 0 {
			picked = append(picked, best)
		}
	}
	if picked == nil {
		picked = []int{}
	}
	return t.Take(picked), nil
}
