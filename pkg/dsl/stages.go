package dsl

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/akhildatla/tabular/pkg/ops"
	"github.com/akhildatla/tabular/pkg/table"
)

type stageFunc func(in *Interpreter, c *CallExpr, t *table.Table, sc *scope) (any, error)

// stages are the generic frame stages. filter, select, mutate, group_by,
// summarize and the joins have their own AST nodes.
var stages map[string]stageFunc

func init() {
	stages = map[string]stageFunc{
		"drop":         (*Interpreter).stageDrop,
		"rename":       (*Interpreter).stageRename,
		"arrange":      (*Interpreter).stageArrange,
		"sort":         (*Interpreter).stageArrange,
		"order_by":     (*Interpreter).stageArrange,
		"head":         (*Interpreter).stageHead,
		"limit":        (*Interpreter).stageHead,
		"take":         (*Interpreter).stageHead,
		"tail":         (*Interpreter).stageTail,
		"sample":       (*Interpreter).stageSample,
		"drop_na":      (*Interpreter).stageDropNA,
		"fill_na":      (*Interpreter).stageFillNA,
		"pivot":        (*Interpreter).stagePivot,
		"melt":         (*Interpreter).stageMelt,
		"resample":     (*Interpreter).stageResample,
		"corr":         (*Interpreter).stageCorr,
		"pct_change":   (*Interpreter).stagePctChange,
		"value_counts": (*Interpreter).stageValueCounts,
		"describe":     (*Interpreter).stageDescribe,
		"nlargest":     (*Interpreter).stageNLargest,
		"nsmallest":    (*Interpreter).stageNSmallest,
		"concat":       (*Interpreter).stageConcat,
		"idxmax":       (*Interpreter).stageIdxMax,
		"idxmin":       (*Interpreter).stageIdxMin,
		"ungroup":      (*Interpreter).stageUngroup,
		"count":        (*Interpreter).stageCount,
	}
}

func (in *Interpreter) evalPipe(p *PipeExpr, sc *scope) (any, error) {
	input, err := in.eval(p.Left, sc)
	if err != nil {
		return nil, err
	}
	return in.applyStage(p.Right, input, sc)
}

// applyStage runs one stage on a frame. A value that is not a frame is
// passed as the first argument of the function named by the stage.
func (in *Interpreter) applyStage(stage Expr, input any, outer *scope) (any, error) {
	if err := in.step(); err != nil {
		return nil, err
	}

	t, keys, ok := frameOf(input)
	if !ok {
		call, isCall := stage.(*CallExpr)
		if !isCall {
			return nil, fmt.Errorf("%w: %s needs a frame, got %s", ErrArgument, stageName(stage), describeValue(input))
		}
		args := append([]Expr{&valueExpr{input}}, call.Args...)
		return in.evalCall(&CallExpr{Func: call.Func, Args: args, Named: call.Named}, outer)
	}

	start := time.Now()
	in.stages++
	out, err := in.runStage(stage, t, keys, outer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stageName(stage), err)
	}

	zerolog.Ctx(in.ctx).Debug().
		Str("stage", stageName(stage)).
		Int("rows_in", t.NRows()).
		Int("rows_out", rowCount(unwrap(out))).
		Dur("took", time.Since(start)).
		Msg("stage applied")
	return out, nil
}

func (in *Interpreter) runStage(stage Expr, t *table.Table, keys []string, outer *scope) (any, error) {
	switch s := stage.(type) {
	case *FilterExpr:
		return in.stageFilter(s, t, keys)
	case *SelectExpr:
		return t.Select(s.Columns...)
	case *MutateExpr:
		return in.stageMutate(s, t, keys)
	case *GroupByExpr:
		if _, err := t.Lookup(s.Keys...); err != nil {
			return nil, err
		}
		return regroup(t, s.Keys), nil
	case *SummarizeExpr:
		return in.stageSummarize(s, t, keys)
	case *JoinExpr:
		return in.stageJoin(s, t, outer)
	case *CallExpr:
		fn, ok := stages[s.Func]
		if !ok {
			args := append([]Expr{&valueExpr{t}}, s.Args...)
			return in.evalCall(&CallExpr{Func: s.Func, Args: args, Named: s.Named}, outer)
		}
		out, err := fn(in, s, t, &scope{frame: t, keys: keys})
		if err != nil {
			return nil, err
		}
		if ot, ok := out.(*table.Table); ok && keepsGroups(s.Func) {
			return regroup(ot, keys), nil
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("%w: missing stage", ErrSyntax)
	}
	return nil, fmt.Errorf("%w: %T is not a stage", ErrArgument, stage)
}

func keepsGroups(name string) bool {
	switch name {
	case "arrange", "sort", "order_by":
		return true
	}
	return false
}

func frameOf(v any) (*table.Table, []string, bool) {
	switch val := v.(type) {
	case *table.Table:
		return val, nil, true
	case *grouped:
		return val.t, val.keys, true
	}
	return nil, nil, false
}

func isFrame(v any) bool {
	_, _, ok := frameOf(v)
	return ok
}

func regroup(t *table.Table, keys []string) any {
	if len(keys) == 0 {
		return t
	}
	return &grouped{t: t, keys: keys}
}

func stageName(e Expr) string {
	switch s := e.(type) {
	case *FilterExpr:
		return "filter"
	case *SelectExpr:
		return "select"
	case *MutateExpr:
		return "mutate"
	case *GroupByExpr:
		return "group_by"
	case *SummarizeExpr:
		return "summarize"
	case *JoinExpr:
		return s.How + "_join"
	case *CallExpr:
		return s.Func
	}
	return fmt.Sprintf("%T", e)
}

func (in *Interpreter) stageFilter(f *FilterExpr, t *table.Table, keys []string) (any, error) {
	v, err := in.eval(f.Condition, &scope{frame: t, keys: keys})
	if err != nil {
		return nil, err
	}

	mask := table.NewBitmap(t.NRows())
	switch c := v.(type) {
	case nil:
	case bool:
		if c {
			mask = table.FullBitmap(t.NRows())
		}
	case *table.Column:
		if c.Kind() != table.KindBool {
			return nil, fmt.Errorf("%w: condition is %s, want bool", table.ErrTypeMismatch, c.Kind())
		}
		for i := 0; i < c.Len(); i++ {
			if b, ok := c.Bool(i); ok && b {
				mask.Set(i)
			}
		}
	default:
		return nil, fmt.Errorf("%w: condition is %s", ErrArgument, describeValue(v))
	}
	return regroup(t.Mask(mask), keys), nil
}

func (in *Interpreter) stageMutate(m *MutateExpr, t *table.Table, keys []string) (any, error) {
	cur := t
	for _, a := range m.Assignments {
		v, err := in.eval(a.Value, &scope{frame: cur, keys: keys})
		if err != nil {
			return nil, err
		}
		col, err := toColumn(a.Name, v, cur.NRows())
		if err != nil {
			return nil, err
		}
		if cur, err = cur.WithColumnValues(col); err != nil {
			return nil, err
		}
	}
	return regroup(cur, keys), nil
}

// toColumn shapes an expression value into a column of n rows.
// Scalars are repeated.
func toColumn(name string, v any, n int) (*table.Column, error) {
	switch val := v.(type) {
	case *table.Column:
		return val.Rename(name), nil
	case nil:
		return table.Nulls(name, table.KindFloat, n), nil
	case []any:
		if len(val) != n {
			return nil, fmt.Errorf("%w: list of %d for %d rows", table.ErrLengthMismatch, len(val), n)
		}
		kind, err := unifyArgs(val)
		if err != nil {
			return nil, err
		}
		return table.NewColumn(name, kind, val)
	case *table.Table, *grouped:
		return nil, fmt.Errorf("%w: %s is a frame", ErrArgument, name)
	}

	kind, ok := table.KindOf(v)
	if !ok {
		return nil, fmt.Errorf("%w: %T", table.ErrTypeMismatch, v)
	}
	vals := make([]any, n)
	for i := range vals {
		vals[i] = v
	}
	return table.NewColumn(name, kind, vals)
}

// stageSummarize reduces each group to one row. Aggregate arguments that
// are not plain columns are computed and attached before grouping.
func (in *Interpreter) stageSummarize(s *SummarizeExpr, t *table.Table, keys []string) (any, error) {
	work := t
	aggs := make([]ops.Aggregation, 0, len(s.Aggregations))
	for i, a := range s.Aggregations {
		r, err := ops.ParseReducer(a.Func)
		if err != nil {
			return nil, err
		}

		switch len(a.Args) {
		case 0:
			if r != ops.Count {
				return nil, fmt.Errorf("%w: %s needs a column", ErrArgument, a.Func)
			}
			aggs = append(aggs, ops.Agg(a.Name, "", r))
		case 1:
			if id, ok := a.Args[0].(*Ident); ok && work.HasColumn(id.Name) {
				aggs = append(aggs, ops.Agg(a.Name, id.Name, r))
				continue
			}
			v, err := in.eval(a.Args[0], &scope{frame: t})
			if err != nil {
				return nil, err
			}
			tmp := fmt.Sprintf("%s%d", argColumn, i)
			col, err := toColumn(tmp, v, t.NRows())
			if err != nil {
				return nil, err
			}
			if work, err = work.WithColumnValues(col); err != nil {
				return nil, err
			}
			aggs = append(aggs, ops.Agg(a.Name, tmp, r))
		default:
			return nil, fmt.Errorf("%w: %s takes one column", ErrArgument, a.Func)
		}
	}
	return ops.GroupAggregate(work, keys, aggs)
}

func (in *Interpreter) stageJoin(j *JoinExpr, t *table.Table, outer *scope) (any, error) {
	rv, err := in.eval(j.Right, outer)
	if err != nil {
		return nil, err
	}
	right, ok := asFrame(rv)
	if !ok {
		return nil, fmt.Errorf("%w: cannot join with %s", ErrArgument, describeValue(rv))
	}
	how, err := ops.ParseJoinKind(j.How)
	if err != nil {
		return nil, err
	}

	opts := ops.JoinOptions{On: j.On, How: how, NullsEqual: j.NullsEqual}
	if len(j.Suffixes) == 2 {
		opts.Suffixes = [2]string{j.Suffixes[0], j.Suffixes[1]}
	}
	if len(opts.On) == 0 && how != ops.Cross {
		for _, name := range t.Names() {
			if right.HasColumn(name) {
				opts.On = append(opts.On, name)
			}
		}
		if len(opts.On) == 0 {
			return nil, fmt.Errorf("%w: no common columns to join on", ops.ErrInvalidJoin)
		}
	}
	return ops.Join(t, right, opts)
}

// positionalNames collects column names from every positional argument.
func positionalNames(c *CallExpr) ([]string, error) {
	var out []string
	for _, a := range c.Args {
		n, err := names(a)
		if err != nil {
			return nil, err
		}
		out = append(out, n...)
	}
	return out, nil
}

func checkNamed(c *CallExpr, allowed ...string) error {
	for _, arg := range c.Named {
		ok := false
		for _, a := range allowed {
			if arg.Name == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: %s has no argument %q", ErrArgument, c.Func, arg.Name)
		}
	}
	return nil
}

func (in *Interpreter) stageDrop(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	cols, err := positionalNames(c)
	if err != nil {
		return nil, err
	}
	return t.Drop(cols...)
}

// stageRename takes new: old pairs.
func (in *Interpreter) stageRename(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	if len(c.Args) > 0 {
		return nil, fmt.Errorf("%w: rename takes new_name: old_name pairs", ErrArgument)
	}
	mapping := make(map[string]string, len(c.Named))
	for _, arg := range c.Named {
		old, err := names(arg.Value)
		if err != nil || len(old) != 1 {
			return nil, fmt.Errorf("%w: rename %s needs one source column", ErrArgument, arg.Name)
		}
		mapping[old[0]] = arg.Name
	}
	return t.Rename(mapping)
}

func (in *Interpreter) stageArrange(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	var keys []table.SortKey
	for _, a := range c.Args {
		desc := false
		if call, ok := a.(*CallExpr); ok && (call.Func == "desc" || call.Func == "asc") && len(call.Args) == 1 {
			desc = call.Func == "desc"
			a = call.Args[0]
		}
		cols, err := names(a)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			keys = append(keys, table.SortKey{Column: col, Descending: desc})
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: arrange needs at least one column", ErrArgument)
	}
	return t.Sort(keys...)
}

func (in *Interpreter) countArg(c *CallExpr) (int, error) {
	if len(c.Args) > 1 {
		return 0, fmt.Errorf("%w: %s takes one count", ErrArgument, c.Func)
	}
	var e Expr
	if len(c.Args) == 1 {
		e = c.Args[0]
	} else {
		e = c.Arg("n")
	}
	n, err := in.intArg(e, 5)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrArgument, n)
	}
	return n, nil
}

func (in *Interpreter) stageHead(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	n, err := in.countArg(c)
	if err != nil {
		return nil, err
	}
	return t.Head(n), nil
}

func (in *Interpreter) stageTail(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	n, err := in.countArg(c)
	if err != nil {
		return nil, err
	}
	return t.Tail(n), nil
}

func (in *Interpreter) stageSample(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	if err := checkNamed(c, "n", "frac", "seed"); err != nil {
		return nil, err
	}
	var opts table.SampleOptions
	var err error
	switch {
	case c.Arg("frac") != nil:
		v, err := in.eval(c.Arg("frac"), nil)
		if err != nil {
			return nil, err
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: frac must be a number", ErrArgument)
		}
		opts.Fraction, opts.UseFraction = f, true
	case len(c.Args) == 1:
		opts.N, err = in.intArg(c.Args[0], 0)
	default:
		opts.N, err = in.intArg(c.Arg("n"), 0)
	}
	if err != nil {
		return nil, err
	}
	seed, err := in.intArg(c.Arg("seed"), 0)
	if err != nil {
		return nil, err
	}
	opts.Seed = int64(seed)
	return t.Sample(opts)
}

func (in *Interpreter) stageDropNA(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	if err := checkNamed(c, "how"); err != nil {
		return nil, err
	}
	subset, err := positionalNames(c)
	if err != nil {
		return nil, err
	}
	how, err := in.stringArg(c.Arg("how"), "any")
	if err != nil {
		return nil, err
	}
	if how != "any" && how != "all" {
		return nil, fmt.Errorf("%w: how must be \"any\" or \"all\"", ErrArgument)
	}
	return t.DropNA(table.DropNAOptions{Subset: subset, All: how == "all"})
}

func (in *Interpreter) stageFillNA(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	if len(c.Args) == 0 {
		return nil, fmt.Errorf("%w: fill_na needs a value", ErrArgument)
	}
	value, err := in.eval(c.Args[0], nil)
	if err != nil {
		return nil, err
	}
	if !isScalar(value) {
		return nil, fmt.Errorf("%w: fill value must be a scalar", ErrArgument)
	}
	cols, err := positionalNames(&CallExpr{Args: c.Args[1:]})
	if err != nil {
		return nil, err
	}
	return t.FillNA(value, cols...)
}

func (in *Interpreter) stagePivot(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	if err := checkNamed(c, "index", "columns", "values", "agg", "fill"); err != nil {
		return nil, err
	}
	var opts ops.PivotOptions
	var err error
	if opts.Index, err = names(c.Arg("index")); err != nil {
		return nil, err
	}
	if opts.Columns, err = in.stringArg(c.Arg("columns"), ""); err != nil {
		return nil, err
	}
	if opts.Values, err = in.stringArg(c.Arg("values"), ""); err != nil {
		return nil, err
	}
	if opts.Columns == "" || opts.Values == "" {
		return nil, fmt.Errorf("%w: pivot needs columns: and values:", ErrArgument)
	}
	if e := c.Arg("agg"); e != nil {
		name, err := in.stringArg(e, "")
		if err != nil {
			return nil, err
		}
		if opts.AggFunc, err = ops.ParseReducer(name); err != nil {
			return nil, err
		}
	}
	if e := c.Arg("fill"); e != nil {
		if opts.FillValue, err = in.eval(e, nil); err != nil {
			return nil, err
		}
	}
	return ops.Pivot(t, opts)
}

func (in *Interpreter) stageMelt(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	if err := checkNamed(c, "id", "values", "var", "value"); err != nil {
		return nil, err
	}
	var opts ops.MeltOptions
	var err error
	if opts.IDColumns, err = names(c.Arg("id")); err != nil {
		return nil, err
	}
	if opts.ValueColumns, err = names(c.Arg("values")); err != nil {
		return nil, err
	}
	if opts.VarName, err = in.stringArg(c.Arg("var"), ""); err != nil {
		return nil, err
	}
	if opts.ValueName, err = in.stringArg(c.Arg("value"), ""); err != nil {
		return nil, err
	}
	return ops.Melt(t, opts)
}

func (in *Interpreter) stageResample(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	if err := checkNamed(c, "time", "freq", "agg", "values", "by"); err != nil {
		return nil, err
	}
	var opts ops.ResampleOptions
	var err error
	if opts.TimeColumn, err = in.stringArg(c.Arg("time"), ""); err != nil {
		return nil, err
	}
	if opts.TimeColumn == "" {
		return nil, fmt.Errorf("%w: resample needs time:", ErrArgument)
	}
	freq, err := in.stringArg(c.Arg("freq"), "")
	if err != nil {
		return nil, err
	}
	if opts.Freq, err = ops.ParseFrequency(freq); err != nil {
		return nil, err
	}
	agg, err := in.stringArg(c.Arg("agg"), string(ops.Mean))
	if err != nil {
		return nil, err
	}
	if opts.Reducer, err = ops.ParseReducer(agg); err != nil {
		return nil, err
	}
	if opts.Values, err = names(c.Arg("values")); err != nil {
		return nil, err
	}
	if opts.By, err = names(c.Arg("by")); err != nil {
		return nil, err
	}
	return ops.Resample(t, opts)
}

func (in *Interpreter) stageCorr(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	cols, err := positionalNames(c)
	if err != nil {
		return nil, err
	}
	return ops.CorrelationMatrix(t, cols...)
}

func (in *Interpreter) stagePctChange(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	cols, err := positionalNames(c)
	if err != nil {
		return nil, err
	}
	return ops.PctChangeTable(t, cols...)
}

func (in *Interpreter) stageValueCounts(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	if err := checkNamed(c, "normalize"); err != nil {
		return nil, err
	}
	cols, err := positionalNames(c)
	if err != nil {
		return nil, err
	}
	if len(cols) != 1 {
		return nil, fmt.Errorf("%w: value_counts takes one column", ErrArgument)
	}
	normalize, err := in.boolArg(c.Arg("normalize"), false)
	if err != nil {
		return nil, err
	}
	return ops.ValueCounts(t, cols[0], normalize)
}

func (in *Interpreter) stageDescribe(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	cols, err := positionalNames(c)
	if err != nil {
		return nil, err
	}
	return ops.Describe(t, cols...)
}

func (in *Interpreter) extremes(c *CallExpr) (int, string, error) {
	if len(c.Args) != 2 {
		return 0, "", fmt.Errorf("%w: %s(n, column)", ErrArgument, c.Func)
	}
	n, err := in.intArg(c.Args[0], 0)
	if err != nil {
		return 0, "", err
	}
	cols, err := names(c.Args[1])
	if err != nil || len(cols) != 1 {
		return 0, "", fmt.Errorf("%w: %s needs one column", ErrArgument, c.Func)
	}
	return n, cols[0], nil
}

func (in *Interpreter) stageNLargest(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	n, col, err := in.extremes(c)
	if err != nil {
		return nil, err
	}
	return t.NLargest(n, col)
}

func (in *Interpreter) stageNSmallest(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	n, col, err := in.extremes(c)
	if err != nil {
		return nil, err
	}
	return t.NSmallest(n, col)
}

func (in *Interpreter) stageConcat(c *CallExpr, t *table.Table, _ *scope) (any, error) {
	tables := []*table.Table{t}
	for _, a := range c.Args {
		v, err := in.eval(a, nil)
		if err != nil {
			return nil, err
		}
		other, ok := asFrame(v)
		if !ok {
			return nil, fmt.Errorf("%w: cannot concat %s", ErrArgument, describeValue(v))
		}
		tables = append(tables, other)
	}
	return table.Concat(tables...)
}

func (in *Interpreter) extremeRows(c *CallExpr, sc *scope) (string, []string, error) {
	if err := checkNamed(c, "by"); err != nil {
		return "", nil, err
	}
	cols, err := positionalNames(c)
	if err != nil {
		return "", nil, err
	}
	if len(cols) != 1 {
		return "", nil, fmt.Errorf("%w: %s takes one column", ErrArgument, c.Func)
	}
	by, err := partitionKeys(c, sc)
	return cols[0], by, err
}

func (in *Interpreter) stageIdxMax(c *CallExpr, t *table.Table, sc *scope) (any, error) {
	col, by, err := in.extremeRows(c, sc)
	if err != nil {
		return nil, err
	}
	return ops.IdxMax(t, by, col)
}

func (in *Interpreter) stageIdxMin(c *CallExpr, t *table.Table, sc *scope) (any, error) {
	col, by, err := in.extremeRows(c, sc)
	if err != nil {
		return nil, err
	}
	return ops.IdxMin(t, by, col)
}

func (in *Interpreter) stageUngroup(_ *CallExpr, t *table.Table, _ *scope) (any, error) {
	return t, nil
}

// stageCount counts rows, per group when the frame is grouped.
func (in *Interpreter) stageCount(c *CallExpr, t *table.Table, sc *scope) (any, error) {
	if len(c.Args) > 0 || len(c.Named) > 0 {
		return nil, fmt.Errorf("%w: count() on a frame takes no arguments", ErrArgument)
	}
	if len(sc.keys) == 0 {
		return int64(t.NRows()), nil
	}
	return ops.GroupAggregate(t, sc.keys, []ops.Aggregation{ops.Agg("n", "", ops.Count)})
}
