package pipeline

import (
	"github.com/akhildatla/tabular/pkg/ops"
	"github.com/akhildatla/tabular/pkg/table"
)

// Select projects onto names.
func Select(names ...string) Step {
	return pure("select", func(in *table.Table) (*table.Table, error) { return in.Select(names...) })
}

// Drop removes columns.
func Drop(names ...string) Step {
	return pure("drop", func(in *table.Table) (*table.Table, error) { return in.Drop(names...) })
}

// Rename renames columns from old to new name.
func Rename(mapping map[string]string) Step {
	return pure("rename", func(in *table.Table) (*table.Table, error) { return in.Rename(mapping) })
}

// Filter keeps rows matching pred.
func Filter(pred func(table.Row) bool) Step {
	return pure("filter", func(in *table.Table) (*table.Table, error) { return in.Filter(pred) })
}

// WithColumn adds or replaces a computed column.
func WithColumn(name string, kind table.Kind, compute func(table.Row) any) Step {
	return pure("with_column", func(in *table.Table) (*table.Table, error) {
		return in.WithColumn(name, kind, compute)
	})
}

// Sort orders rows by keys.
func Sort(keys ...table.SortKey) Step {
	return pure("sort", func(in *table.Table) (*table.Table, error) { return in.Sort(keys...) })
}

// Head keeps the first n rows.
func Head(n int) Step {
	return pure("head", func(in *table.Table) (*table.Table, error) { return in.Head(n), nil })
}

// Sample draws rows without replacement.
func Sample(opts table.SampleOptions) Step {
	return pure("sample", func(in *table.Table) (*table.Table, error) { return in.Sample(opts) })
}

// DropNA drops rows with nulls.
func DropNA(opts table.DropNAOptions) Step {
	return pure("drop_na", func(in *table.Table) (*table.Table, error) { return in.DropNA(opts) })
}

// FillNA replaces nulls.
func FillNA(value any, columns ...string) Step {
	return pure("fill_na", func(in *table.Table) (*table.Table, error) { return in.FillNA(value, columns...) })
}

// Join joins the input (as the left side) with right.
func Join(right *table.Table, opts ops.JoinOptions) Step {
	return pure("join", func(in *table.Table) (*table.Table, error) { return ops.Join(in, right, opts) })
}

// GroupAggregate reduces groups of rows.
func GroupAggregate(by []string, aggs ...ops.Aggregation) Step {
	return pure("group_aggregate", func(in *table.Table) (*table.Table, error) {
		return ops.GroupAggregate(in, by, aggs)
	})
}

// Transform broadcasts a group aggregate of source into column output.
func Transform(output string, by []string, source string, r ops.Reducer) Step {
	return pure("transform", func(in *table.Table) (*table.Table, error) {
		c, err := ops.Transform(in, by, source, r)
		if err != nil {
			return nil, err
		}
		return in.WithColumnValues(c.Rename(output))
	})
}

// Pivot reshapes long to wide.
func Pivot(opts ops.PivotOptions) Step {
	return pure("pivot", func(in *table.Table) (*table.Table, error) { return ops.Pivot(in, opts) })
}

// Melt reshapes wide to long.
func Melt(opts ops.MeltOptions) Step {
	return pure("melt", func(in *table.Table) (*table.Table, error) { return ops.Melt(in, opts) })
}

// Rolling adds a rolling statistic as column output.
func Rolling(output string, opts ops.RollingOptions) Step {
	return pure("rolling", func(in *table.Table) (*table.Table, error) {
		c, err := ops.Rolling(in, opts)
		if err != nil {
			return nil, err
		}
		return in.WithColumnValues(c.Rename(output))
	})
}

// Resample buckets rows by calendar period.
func Resample(opts ops.ResampleOptions) Step {
	return pure("resample", func(in *table.Table) (*table.Table, error) { return ops.Resample(in, opts) })
}

// PctChange replaces numeric columns by their percent change.
func PctChange(columns ...string) Step {
	return pure("pct_change", func(in *table.Table) (*table.Table, error) {
		return ops.PctChangeTable(in, columns...)
	})
}

// Correlation replaces the input with its correlation matrix.
func Correlation(columns ...string) Step {
	return pure("corr", func(in *table.Table) (*table.Table, error) {
		return ops.CorrelationMatrix(in, columns...)
	})
}
