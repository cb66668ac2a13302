package ops

import (
	"fmt"
	"sort"

	"github.com/akhildatla/tabular/pkg/table"
)

// PivotOptions configures Pivot. Without AggFunc every (index, column)
// cell must be produced by at most one row.
type PivotOptions struct {
	Index     []string
	Columns   string
	Values    string
	AggFunc   Reducer
	FillValue any
}

// Pivot reshapes long data to wide: one row per distinct index tuple and
// one column per distinct value of the Columns key. Rows and pivoted
// columns are both in ascending order. Missing cells are null unless
// FillValue is set; rows whose Columns key is null are skipped.
func Pivot(t *table.Table, opts PivotOptions) (*table.Table, error) {
	idxCols, err := t.Lookup(opts.Index...)
	if err != nil {
		return nil, fmt.Errorf("pivot index: %w", err)
	}
	keyCol, err := t.Column(opts.Columns)
	if err != nil {
		return nil, fmt.Errorf("pivot columns: %w", err)
	}
	valCol, err := t.Column(opts.Values)
	if err != nil {
		return nil, fmt.Errorf("pivot values: %w", err)
	}
	reducer := opts.AggFunc
	if reducer == "" {
		reducer = First
	} else if err := reducer.Check(valCol.Kind()); err != nil {
		return nil, fmt.Errorf("pivot: %w", err)
	}

	rowGroups := GroupRows(idxCols, t.NRows())
	rowOrder := make([]int, rowGroups.Len())
	for i := range rowOrder {
		rowOrder[i] = i
	}
	sort.SliceStable(rowOrder, func(a, b int) bool {
		ka := table.KeyAt(idxCols, rowGroups.First[rowOrder[a]])
		kb := table.KeyAt(idxCols, rowGroups.First[rowOrder[b]])
		for i := range ka {
			if c := table.CompareNullsLast(ka[i], kb[i]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	rowPos := make(map[string]int, rowGroups.Len())
	for pos, g := range rowOrder {
		rowPos[rowGroups.Keys[g]] = pos
	}

	var colValues []any
	colPos := map[string]int{}
	for i := 0; i < t.NRows(); i++ {
		v := keyCol.Value(i)
		if v == nil {
			continue
		}
		if _, ok := colPos[table.Key(v)]; !ok {
			colPos[table.Key(v)] = -1
			colValues = append(colValues, v)
		}
	}
	sort.SliceStable(colValues, func(a, b int) bool { return table.Compare(colValues[a], colValues[b]) < 0 })
	for i, v := range colValues {
		colPos[table.Key(v)] = i
	}

	cells := make([][][]int, len(rowOrder))
	for r := range cells {
		cells[r] = make([][]int, len(colValues))
	}
	for i := 0; i < t.NRows(); i++ {
		v := keyCol.Value(i)
		if v == nil {
			continue
		}
		r := rowPos[table.Key(table.KeyAt(idxCols, i)...)]
		c := colPos[table.Key(v)]
		if opts.AggFunc == "" && len(cells[r][c]) > 0 {
			return nil, fmt.Errorf("%w: index %v, column %s",
				ErrDuplicateCombination, table.KeyAt(idxCols, i), table.FormatValue(v))
		}
		cells[r][c] = append(cells[r][c], i)
	}

	outKind := reducer.Kind(valCol.Kind())
	fill, err := table.Normalize(outKind, opts.FillValue)
	if err != nil {
		return nil, fmt.Errorf("pivot fill value: %w", err)
	}

	firsts := make([]int, len(rowOrder))
	for pos, g := range rowOrder {
		firsts[pos] = rowGroups.First[g]
	}
	cols := make([]*table.Column, 0, len(idxCols)+len(colValues))
	for _, ic := range idxCols {
		cols = append(cols, ic.Take(firsts))
	}
	for c, v := range colValues {
		vals := make([]any, len(rowOrder))
		for r := range rowOrder {
			if rows := cells[r][c]; len(rows) > 0 {
				vals[r] = reducer.Reduce(valCol, rows)
			}
			if vals[r] == nil {
				vals[r] = fill
			}
		}
		col, err := table.NewColumn(table.FormatValue(v), outKind, vals)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	out, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("pivot: %w", err)
	}
	return out, nil
}

// MeltOptions configures Melt. ValueColumns defaults to every non-id
// column; VarName and ValueName default to "variable" and "value".
type MeltOptions struct {
	IDColumns    []string
	ValueColumns []string
	VarName      string
	ValueName    string
}

// Melt reshapes wide data to long. Each input row emits one row per
// melted column holding the id columns, the melted column's name and its
// value.
func Melt(t *table.Table, opts MeltOptions) (*table.Table, error) {
	ids, err := t.Lookup(opts.IDColumns...)
	if err != nil {
		return nil, fmt.Errorf("melt: %w", err)
	}
	valueNames := opts.ValueColumns
	if len(valueNames) == 0 {
		isID := make(map[string]bool, len(opts.IDColumns))
		for _, n := range opts.IDColumns {
			isID[n] = true
		}
		for _, n := range t.Names() {
			if !isID[n] {
				valueNames = append(valueNames, n)
			}
		}
	}
	values, err := t.Lookup(valueNames...)
	if err != nil {
		return nil, fmt.Errorf("melt: %w", err)
	}
	varName, valueName := opts.VarName, opts.ValueName
	if varName == "" {
		varName = "variable"
	}
	if valueName == "" {
		valueName = "value"
	}

	kinds := make([]table.Kind, len(values))
	for i, c := range values {
		kinds[i] = c.Kind()
	}
	valueKind, err := table.Unify(kinds...)
	if err != nil {
		return nil, fmt.Errorf("melt: %w", err)
	}

	n := t.NRows()
	rows := make([]int, 0, n*len(values))
	vars := make([]any, 0, n*len(values))
	vals := make([]any, 0, n*len(values))
	for i := 0; i < n; i++ {
		for _, c := range values {
			rows = append(rows, i)
			vars = append(vars, c.Name())
			v, err := table.Normalize(valueKind, c.Value(i))
			if err != nil {
				return nil, fmt.Errorf("melt: %w", err)
			}
			vals = append(vals, v)
		}
	}

	cols := make([]*table.Column, 0, len(ids)+2)
	for _, c := range ids {
		cols = append(cols, c.Take(rows))
	}
	varCol, err := table.NewColumn(varName, table.KindString, vars)
	if err != nil {
		return nil, err
	}
	valCol, err := table.NewColumn(valueName, valueKind, vals)
	if err != nil {
		return nil, err
	}
	out, err := table.New(append(cols, varCol, valCol)...)
	if err != nil {
		return nil, fmt.Errorf("melt: %w", err)
	}
	return out, nil
}
