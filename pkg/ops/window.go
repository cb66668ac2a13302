package ops

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/akhildatla/tabular/pkg/table"
)

// checkSorted verifies that orderBy ascends within every partition and
// holds no nulls. It returns the partitioning of the rows.
func checkSorted(t *table.Table, orderBy string, partitionBy []string) (*Grouping, error) {
	_, g, err := groupBy(t, partitionBy)
	if err != nil {
		return nil, err
	}
	if orderBy == "" {
		return g, nil
	}
	key, err := t.Column(orderBy)
	if err != nil {
		return nil, err
	}
	for _, rows := range g.Rows {
		for p, i := range rows {
			v := key.Value(i)
			if v == nil {
				return nil, fmt.Errorf("%w: %s is null at row %d", ErrUnsortedInput, orderBy, i)
			}
			if p > 0 && table.Compare(key.Value(rows[p-1]), v) > 0 {
				return nil, fmt.Errorf("%w: %s decreases at row %d", ErrUnsortedInput, orderBy, i)
			}
		}
	}
	return g, nil
}

// RollingOptions configures Rolling. OrderBy, when set, must ascend
// within each partition. MinPeriods is the number of non-null values a
// full window needs and defaults to Window. It never fills the leading
// Window-1 rows, which have no full window.
type RollingOptions struct {
	Column      string
	Window      int
	Reducer     Reducer
	OrderBy     string
	PartitionBy []string
	MinPeriods  int
}

// Rolling applies the reducer to a trailing window of Window rows ending
// at each row of its partition. The first Window-1 rows of every
// partition are null, as is any window with fewer than MinPeriods
// non-null values.
func Rolling(t *table.Table, opts RollingOptions) (*table.Column, error) {
	if opts.Window <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, opts.Window)
	}
	minPeriods := opts.MinPeriods
	if minPeriods <= 0 || minPeriods > opts.Window {
		minPeriods = opts.Window
	}
	src, err := t.Column(opts.Column)
	if err != nil {
		return nil, fmt.Errorf("rolling: %w", err)
	}
	if err := opts.Reducer.Check(src.Kind()); err != nil {
		return nil, fmt.Errorf("rolling: %w", err)
	}
	g, err := checkSorted(t, opts.OrderBy, opts.PartitionBy)
	if err != nil {
		return nil, fmt.Errorf("rolling: %w", err)
	}

	vals := make([]any, t.NRows())
	for _, rows := range g.Rows {
		for p := opts.Window - 1; p < len(rows); p++ {
			window := rows[p-opts.Window+1 : p+1]
			nonNull := 0
			for _, i := range window {
				if !src.IsNull(i) {
					nonNull++
				}
			}
			if nonNull >= minPeriods {
				vals[rows[p]] = opts.Reducer.Reduce(src, window)
			}
		}
	}
	return table.NewColumn(src.Name(), opts.Reducer.Kind(src.Kind()), vals)
}

// PctChange returns (v[i] - v[i-1]) / v[i-1]. The first element is null,
// as is any element whose current or previous value is null or whose
// previous value is zero.
func PctChange(c *table.Column) (*table.Column, error) {
	return partitionedDelta(c, [][]int{seqRows(c.Len())}, pctChange)
}

// PctChangeBy is PctChange computed separately within each partition of
// the by columns, in row order.
func PctChangeBy(t *table.Table, column string, by []string) (*table.Column, error) {
	c, err := t.Column(column)
	if err != nil {
		return nil, fmt.Errorf("pct_change: %w", err)
	}
	_, g, err := groupBy(t, by)
	if err != nil {
		return nil, fmt.Errorf("pct_change: %w", err)
	}
	return partitionedDelta(c, g.Rows, pctChange)
}

func pctChange(prev, cur float64) (float64, bool) {
	if prev == 0 {
		return 0, false
	}
	return (cur - prev) / prev, true
}

func partitionedDelta(c *table.Column, parts [][]int, fn func(prev, cur float64) (float64, bool)) (*table.Column, error) {
	if !c.Kind().Numeric() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTypeMismatch, c.Name(), c.Kind())
	}
	vals := make([]any, c.Len())
	for _, rows := range parts {
		for p := 1; p < len(rows); p++ {
			prev, ok1 := c.Float(rows[p-1])
			cur, ok2 := c.Float(rows[p])
			if !ok1 || !ok2 {
				continue
			}
			if v, ok := fn(prev, cur); ok {
				vals[rows[p]] = v
			}
		}
	}
	return table.NewColumn(c.Name(), table.KindFloat, vals)
}

// CumSum returns the running sum of c. Null rows stay null and do not
// reset the sum.
func CumSum(c *table.Column) (*table.Column, error) {
	if !c.Kind().Numeric() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTypeMismatch, c.Name(), c.Kind())
	}
	vals := make([]any, c.Len())
	var fsum float64
	var isum int64
	for i := range vals {
		switch v := c.Value(i).(type) {
		case int64:
			isum += v
			vals[i] = isum
		case float64:
			fsum += v
			vals[i] = fsum
		}
	}
	return table.NewColumn(c.Name(), c.Kind(), vals)
}

// PctChangeTable replaces each named numeric column with its PctChange.
// With no columns every numeric column is converted.
func PctChangeTable(t *table.Table, columns ...string) (*table.Table, error) {
	if len(columns) == 0 {
		columns = numericColumns(t)
	}
	out := t
	for _, name := range columns {
		c, err := t.Column(name)
		if err != nil {
			return nil, fmt.Errorf("pct_change: %w", err)
		}
		pc, err := PctChange(c)
		if err != nil {
			return nil, fmt.Errorf("pct_change: %w", err)
		}
		if out, err = out.WithColumnValues(pc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ResampleOptions configures Resample. Values defaults to every numeric
// column outside TimeColumn and By.
type ResampleOptions struct {
	TimeColumn string
	Freq       Frequency
	Values     []string
	Reducer    Reducer
	By         []string
}

// Resample buckets rows into consecutive calendar periods of TimeColumn
// and reduces the value columns per bucket. Every bucket between a
// partition's first and last is emitted; empty buckets carry the
// reducer's value for no input (null for most reducers, 0 for count and
// sum).
func Resample(t *table.Table, opts ResampleOptions) (*table.Table, error) {
	switch opts.Freq {
	case Daily, Weekly, MonthEnd, QuarterEnd, YearEnd:
	default:
		return nil, fmt.Errorf("resample: %w: %q", ErrInvalidFrequency, opts.Freq)
	}
	timeCol, err := t.Column(opts.TimeColumn)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	if timeCol.Kind() != table.KindTime {
		return nil, fmt.Errorf("resample: %w: %s is %s", ErrTypeMismatch, opts.TimeColumn, timeCol.Kind())
	}
	byCols, err := t.Lookup(opts.By...)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	valueNames := opts.Values
	if len(valueNames) == 0 {
		skip := map[string]bool{opts.TimeColumn: true}
		for _, b := range opts.By {
			skip[b] = true
		}
		for _, n := range numericColumns(t) {
			if !skip[n] {
				valueNames = append(valueNames, n)
			}
		}
	}
	valueCols, err := t.Lookup(valueNames...)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	for _, c := range valueCols {
		if err := opts.Reducer.Check(c.Kind()); err != nil {
			return nil, fmt.Errorf("resample %s: %w", c.Name(), err)
		}
	}
	g, err := checkSorted(t, opts.TimeColumn, opts.By)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	var (
		byRows  []int
		labels  []any
		buckets [][]int
	)
	for _, rows := range g.Rows {
		if len(rows) == 0 {
			continue
		}
		first, _ := timeCol.Time(rows[0])
		last, _ := timeCol.Time(rows[len(rows)-1])
		p := 0
		for b := opts.Freq.BucketEnd(first); !b.After(opts.Freq.BucketEnd(last)); b = opts.Freq.Next(b) {
			var members []int
			for ; p < len(rows); p++ {
				ts, _ := timeCol.Time(rows[p])
				if !opts.Freq.BucketEnd(ts).Equal(b) {
					break
				}
				members = append(members, rows[p])
			}
			byRows = append(byRows, rows[0])
			labels = append(labels, b)
			buckets = append(buckets, members)
		}
	}
	if byRows == nil {
		byRows = []int{}
	}

	cols := make([]*table.Column, 0, len(byCols)+1+len(valueCols))
	for _, c := range byCols {
		cols = append(cols, c.Take(byRows))
	}
	labelCol, err := table.NewColumn(opts.TimeColumn, table.KindTime, labels)
	if err != nil {
		return nil, err
	}
	cols = append(cols, labelCol)
	for _, c := range valueCols {
		vals := make([]any, len(buckets))
		for i, members := range buckets {
			vals[i] = opts.Reducer.Reduce(c, members)
		}
		col, err := table.NewColumn(c.Name(), opts.Reducer.Kind(c.Kind()), vals)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return table.New(cols...)
}

// CorrelationMatrix computes pairwise Pearson correlation over rows where
// both columns are non-null. The result has a "column" name column and
// one float column per input column. Pairs with fewer than two joint
// values or zero variance are null, including the diagonal.
func CorrelationMatrix(t *table.Table, columns ...string) (*table.Table, error) {
	if len(columns) == 0 {
		columns = numericColumns(t)
	}
	cols, err := t.Lookup(columns...)
	if err != nil {
		return nil, fmt.Errorf("corr: %w", err)
	}
	for _, c := range cols {
		if !c.Kind().Numeric() {
			return nil, fmt.Errorf("corr: %w: %s is %s", ErrTypeMismatch, c.Name(), c.Kind())
		}
	}
	names := make([]any, len(cols))
	data := make([][]float64, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
		data[i] = c.Floats()
	}

	out := []*table.Column{table.Strings("column", names...)}
	for j := range cols {
		vals := make([]any, len(cols))
		for i := range cols {
			vals[i] = correlation(data[i], data[j], i == j)
		}
		c, err := table.NewColumn(cols[j].Name(), table.KindFloat, vals)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return table.New(out...)
}

func correlation(x, y []float64, diagonal bool) any {
	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 || stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return nil
	}
	if diagonal {
		return 1.0
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return nil
	}
	return r
}

func numericColumns(t *table.Table) []string {
	var names []string
	for _, f := range t.Schema() {
		if f.Kind.Numeric() {
			names = append(names, f.Name)
		}
	}
	return names
}

func seqRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// Sorted reports whether column ascends with no nulls.
func Sorted(t *table.Table, column string) bool {
	_, err := checkSorted(t, column, nil)
	return err == nil
}
