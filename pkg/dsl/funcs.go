package dsl

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/akhildatla/tabular/pkg/loader"
	"github.com/akhildatla/tabular/pkg/ops"
	"github.com/akhildatla/tabular/pkg/table"
)

// argColumn names a computed argument while it is attached to a frame.
const argColumn = "\x00arg"

func (in *Interpreter) evalCall(c *CallExpr, sc *scope) (any, error) {
	switch c.Func {
	case "load", "load_csv", "load_json", "load_parquet":
		return in.callLoad(c)
	case "frame":
		return in.callFrame(c)
	case "desc", "asc":
		return nil, fmt.Errorf("%w: %s() is only valid inside arrange", ErrArgument, c.Func)
	}

	// A stage called with a frame first is the same as piping the frame.
	if _, ok := stages[c.Func]; ok && len(c.Args) > 0 {
		first, err := in.eval(c.Args[0], sc)
		if err != nil {
			return nil, err
		}
		if isFrame(first) {
			rest := &CallExpr{Func: c.Func, Args: c.Args[1:], Named: c.Named}
			return in.applyStage(rest, first, sc)
		}
		c = &CallExpr{Func: c.Func, Args: append([]Expr{&valueExpr{first}}, c.Args[1:]...), Named: c.Named}
	}

	switch c.Func {
	case "rolling":
		return in.callRolling(c, sc)
	case "cumsum":
		return in.callCumSum(c, sc)
	case "pct_change":
		return in.callPctChange(c, sc)
	case "transform":
		return in.callTransform(c, sc)
	case "nrow", "row_count", "ncol", "col_count", "columns":
		return in.callShape(c, sc)
	}

	if r, err := ops.ParseReducer(c.Func); err == nil {
		return in.callAggregate(r, c, sc)
	}

	fn, ok := elementFuncs[c.Func]
	if !ok {
		return nil, fmt.Errorf("%w: function %q", ErrUndefined, c.Func)
	}
	if len(c.Named) > 0 {
		return nil, fmt.Errorf("%w: %s takes no named arguments", ErrArgument, c.Func)
	}
	if len(c.Args) < fn.min || (fn.max >= 0 && len(c.Args) > fn.max) {
		return nil, fmt.Errorf("%w: %s takes %s arguments, got %d", ErrArgument, c.Func, fn.arity(), len(c.Args))
	}
	args, err := in.evalArgs(c.Args, sc)
	if err != nil {
		return nil, err
	}
	kind, err := fn.kind(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Func, err)
	}
	return broadcast(kind, args, fn.apply)
}

func (in *Interpreter) evalArgs(exprs []Expr, sc *scope) ([]any, error) {
	args := make([]any, len(exprs))
	for i, e := range exprs {
		v, err := in.eval(e, sc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (in *Interpreter) callLoad(c *CallExpr) (any, error) {
	if len(c.Args) != 1 {
		return nil, fmt.Errorf("%w: %s takes a path", ErrArgument, c.Func)
	}
	path, err := in.stringArg(c.Args[0], "")
	if err != nil {
		return nil, err
	}
	if err := in.checkPath(path); err != nil {
		return nil, err
	}

	switch c.Func {
	case "load_json":
		return loader.LoadJSON(path)
	case "load_parquet":
		return loader.LoadParquet(path)
	}

	var opts loader.CSVOptions
	for _, arg := range c.Named {
		switch arg.Name {
		case "delimiter", "sep":
			s, err := in.stringArg(arg.Value, "")
			if err != nil {
				return nil, err
			}
			if utf8.RuneCountInString(s) != 1 {
				return nil, fmt.Errorf("%w: delimiter must be one character", ErrArgument)
			}
			opts.Delimiter, _ = utf8.DecodeRuneInString(s)
		case "encoding":
			if opts.Encoding, err = in.stringArg(arg.Value, ""); err != nil {
				return nil, err
			}
		case "na":
			if opts.NilValue, err = in.stringArg(arg.Value, ""); err != nil {
				return nil, err
			}
		case "time", "dates":
			if opts.TimeColumns, err = names(arg.Value); err != nil {
				return nil, err
			}
		case "layout":
			if opts.TimeLayout, err = in.stringArg(arg.Value, ""); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: load has no argument %q", ErrArgument, arg.Name)
		}
	}
	if c.Func == "load_csv" {
		return loader.LoadCSV(path, opts)
	}
	return loader.Load(path, opts)
}

func (in *Interpreter) callFrame(c *CallExpr) (any, error) {
	if len(c.Args) != 1 {
		return nil, fmt.Errorf("%w: frame takes a name", ErrArgument)
	}
	name, err := in.stringArg(c.Args[0], "")
	if err != nil {
		return nil, err
	}
	t, ok := in.frames[name]
	if !ok {
		return nil, fmt.Errorf("%w: frame %q is not registered", ErrUndefined, name)
	}
	return t, nil
}

func (in *Interpreter) callShape(c *CallExpr, sc *scope) (any, error) {
	var t *table.Table
	switch {
	case len(c.Args) == 1:
		v, err := in.eval(c.Args[0], sc)
		if err != nil {
			return nil, err
		}
		ft, ok := asFrame(v)
		if !ok {
			if col, ok := v.(*table.Column); ok && c.Func != "columns" {
				return int64(col.Len()), nil
			}
			return nil, fmt.Errorf("%w: %s of %s", ErrArgument, c.Func, describeValue(v))
		}
		t = ft
	case len(c.Args) == 0 && sc != nil && sc.frame != nil:
		t = sc.frame
	default:
		return nil, fmt.Errorf("%w: %s needs a frame", ErrArgument, c.Func)
	}

	switch c.Func {
	case "ncol", "col_count":
		return int64(t.NCols()), nil
	case "columns":
		out := make([]any, t.NCols())
		for i, name := range t.Names() {
			out[i] = name
		}
		return out, nil
	}
	return int64(t.NRows()), nil
}

// callAggregate reduces a column to a scalar. Inside a grouped frame the
// per-group result is broadcast to every row of the group.
func (in *Interpreter) callAggregate(r ops.Reducer, c *CallExpr, sc *scope) (any, error) {
	if len(c.Named) > 0 || len(c.Args) > 1 {
		return nil, fmt.Errorf("%w: %s takes one column", ErrArgument, c.Func)
	}

	if len(c.Args) == 0 {
		if r != ops.Count {
			return nil, fmt.Errorf("%w: %s needs a column", ErrArgument, c.Func)
		}
		if sc.rows() < 0 {
			return nil, fmt.Errorf("%w: count() outside a frame", ErrArgument)
		}
		if len(sc.keys) == 0 {
			return int64(sc.rows()), nil
		}
		g, err := in.groupRows(sc)
		if err != nil {
			return nil, err
		}
		vals := make([]any, sc.rows())
		for _, rows := range g.Rows {
			for _, i := range rows {
				vals[i] = int64(len(rows))
			}
		}
		return table.NewColumn("count", table.KindInt, vals)
	}

	v, err := in.eval(c.Args[0], sc)
	if err != nil {
		return nil, err
	}
	col, ok := v.(*table.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %s of %s", ErrArgument, c.Func, describeValue(v))
	}
	if err := r.Check(col.Kind()); err != nil {
		return nil, err
	}

	if len(sc.keysOrNil()) == 0 || col.Len() != sc.rows() {
		return r.ReduceAll(col), nil
	}
	g, err := in.groupRows(sc)
	if err != nil {
		return nil, err
	}
	vals := make([]any, col.Len())
	for _, rows := range g.Rows {
		agg := r.Reduce(col, rows)
		for _, i := range rows {
			vals[i] = agg
		}
	}
	return table.NewColumn(col.Name(), r.Kind(col.Kind()), vals)
}

func (sc *scope) keysOrNil() []string {
	if sc == nil {
		return nil
	}
	return sc.keys
}

func (in *Interpreter) groupRows(sc *scope) (*ops.Grouping, error) {
	cols, err := sc.frame.Lookup(sc.keys...)
	if err != nil {
		return nil, err
	}
	return ops.GroupRows(cols, sc.frame.NRows()), nil
}

// windowInput evaluates the first argument of a window function and
// attaches it to the current frame under argColumn.
func (in *Interpreter) windowInput(c *CallExpr, sc *scope) (*table.Table, *table.Column, error) {
	if len(c.Args) == 0 {
		return nil, nil, fmt.Errorf("%w: %s needs a column", ErrArgument, c.Func)
	}
	if sc.rows() < 0 {
		return nil, nil, fmt.Errorf("%w: %s is only valid inside a frame stage", ErrArgument, c.Func)
	}
	v, err := in.eval(c.Args[0], sc)
	if err != nil {
		return nil, nil, err
	}
	col, ok := v.(*table.Column)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s of %s", ErrArgument, c.Func, describeValue(v))
	}
	t, err := sc.frame.WithColumnValues(col.Rename(argColumn))
	if err != nil {
		return nil, nil, err
	}
	return t, col, nil
}

// partitionKeys returns the by: argument, or the scope's group keys.
func partitionKeys(c *CallExpr, sc *scope) ([]string, error) {
	if e := c.Arg("by"); e != nil {
		return names(e)
	}
	return sc.keysOrNil(), nil
}

func (in *Interpreter) callRolling(c *CallExpr, sc *scope) (any, error) {
	t, col, err := in.windowInput(c, sc)
	if err != nil {
		return nil, err
	}
	if len(c.Args) < 2 || len(c.Args) > 3 {
		return nil, fmt.Errorf("%w: rolling(x, window, reducer)", ErrArgument)
	}
	window, err := in.intArg(c.Args[1], 0)
	if err != nil {
		return nil, err
	}
	reducer := "mean"
	if len(c.Args) == 3 {
		if reducer, err = in.stringArg(c.Args[2], ""); err != nil {
			return nil, err
		}
	}
	r, err := ops.ParseReducer(reducer)
	if err != nil {
		return nil, err
	}

	opts := ops.RollingOptions{Column: argColumn, Window: window, Reducer: r}
	if opts.PartitionBy, err = partitionKeys(c, sc); err != nil {
		return nil, err
	}
	for _, arg := range c.Named {
		switch arg.Name {
		case "by":
		case "order":
			if opts.OrderBy, err = in.stringArg(arg.Value, ""); err != nil {
				return nil, err
			}
		case "min_periods":
			if opts.MinPeriods, err = in.intArg(arg.Value, 0); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: rolling has no argument %q", ErrArgument, arg.Name)
		}
	}

	out, err := ops.Rolling(t, opts)
	if err != nil {
		return nil, err
	}
	return out.Rename(col.Name()), nil
}

func (in *Interpreter) callPctChange(c *CallExpr, sc *scope) (any, error) {
	if sc.rows() < 0 && len(c.Args) == 1 && c.Arg("by") == nil {
		v, err := in.eval(c.Args[0], sc)
		if err != nil {
			return nil, err
		}
		col, ok := v.(*table.Column)
		if !ok {
			return nil, fmt.Errorf("%w: pct_change of %s", ErrArgument, describeValue(v))
		}
		return ops.PctChange(col)
	}

	t, col, err := in.windowInput(c, sc)
	if err != nil {
		return nil, err
	}
	by, err := partitionKeys(c, sc)
	if err != nil {
		return nil, err
	}
	out, err := ops.PctChangeBy(t, argColumn, by)
	if err != nil {
		return nil, err
	}
	return out.Rename(col.Name()), nil
}

func (in *Interpreter) callCumSum(c *CallExpr, sc *scope) (any, error) {
	if len(c.Args) != 1 {
		return nil, fmt.Errorf("%w: cumsum takes one column", ErrArgument)
	}
	v, err := in.eval(c.Args[0], sc)
	if err != nil {
		return nil, err
	}
	col, ok := v.(*table.Column)
	if !ok {
		return nil, fmt.Errorf("%w: cumsum of %s", ErrArgument, describeValue(v))
	}
	by, err := partitionKeys(c, sc)
	if err != nil {
		return nil, err
	}
	if len(by) == 0 || sc.rows() != col.Len() {
		return ops.CumSum(col)
	}

	keys, err := sc.frame.Lookup(by...)
	if err != nil {
		return nil, err
	}
	vals := make([]any, col.Len())
	for _, rows := range ops.GroupRows(keys, col.Len()).Rows {
		part, err := ops.CumSum(col.Take(rows))
		if err != nil {
			return nil, err
		}
		for p, i := range rows {
			vals[i] = part.Value(p)
		}
	}
	return table.NewColumn(col.Name(), col.Kind(), vals)
}

func (in *Interpreter) callTransform(c *CallExpr, sc *scope) (any, error) {
	if len(c.Args) != 2 {
		return nil, fmt.Errorf("%w: transform(x, reducer, by: keys)", ErrArgument)
	}
	t, col, err := in.windowInput(c, sc)
	if err != nil {
		return nil, err
	}
	name, err := in.stringArg(c.Args[1], "")
	if err != nil {
		return nil, err
	}
	r, err := ops.ParseReducer(name)
	if err != nil {
		return nil, err
	}
	by, err := partitionKeys(c, sc)
	if err != nil {
		return nil, err
	}
	out, err := ops.Transform(t, by, argColumn, r)
	if err != nil {
		return nil, err
	}
	return out.Rename(col.Name()), nil
}

// stringArg evaluates a string argument. A bare identifier that is not a
// variable stands for its own name, so reducers and columns can be
// written unquoted.
func (in *Interpreter) stringArg(e Expr, def string) (string, error) {
	if e == nil {
		return def, nil
	}
	if id, ok := e.(*Ident); ok {
		if v, ok := in.vars[id.Name]; ok {
			if s, ok := v.(string); ok {
				return s, nil
			}
		}
		return id.Name, nil
	}
	v, err := in.eval(e, nil)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected a string, got %s", ErrArgument, describeValue(v))
	}
	return s, nil
}

func (in *Interpreter) intArg(e Expr, def int) (int, error) {
	if e == nil {
		return def, nil
	}
	v, err := in.eval(e, nil)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: expected an integer, got %s", ErrArgument, describeValue(v))
	}
	return int(n), nil
}

func (in *Interpreter) boolArg(e Expr, def bool) (bool, error) {
	if e == nil {
		return def, nil
	}
	v, err := in.eval(e, nil)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expected true or false, got %s", ErrArgument, describeValue(v))
	}
	return b, nil
}

// names reads column names written as identifiers, strings or a list of
// either.
func names(e Expr) ([]string, error) {
	switch v := e.(type) {
	case nil:
		return nil, nil
	case *Ident:
		return []string{v.Name}, nil
	case *StringLit:
		return []string{v.Value}, nil
	case *ListLit:
		out := make([]string, 0, len(v.Elems))
		for _, el := range v.Elems {
			n, err := names(el)
			if err != nil {
				return nil, err
			}
			out = append(out, n...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected column names", ErrArgument)
}

// ===== Element-wise functions =====

type elementFunc struct {
	min, max int // max < 0 means variadic
	kind     func(args []any) (table.Kind, error)
	apply    func(vals []any) (any, error)
}

func (f elementFunc) arity() string {
	switch {
	case f.max < 0:
		return fmt.Sprintf("at least %d", f.min)
	case f.min == f.max:
		return fmt.Sprint(f.min)
	}
	return fmt.Sprintf("%d to %d", f.min, f.max)
}

func fixed(k table.Kind) func([]any) (table.Kind, error) {
	return func([]any) (table.Kind, error) { return k, nil }
}

// sameAsFirst returns the kind of the first argument, which must be
// numeric.
func sameAsFirst(args []any) (table.Kind, error) {
	k, ok := kindOf(args[0])
	if !ok {
		return table.KindFloat, nil
	}
	if !k.Numeric() {
		return 0, fmt.Errorf("%w: %s is not numeric", table.ErrTypeMismatch, k)
	}
	return k, nil
}

func unifyArgs(args []any) (table.Kind, error) {
	var kinds []table.Kind
	for _, a := range args {
		if k, ok := kindOf(a); ok {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return table.KindFloat, nil
	}
	return table.Unify(kinds...)
}

func stringPredicate(fn func(s, sub string) bool) elementFunc {
	return elementFunc{min: 2, max: 2, kind: fixed(table.KindBool), apply: func(vals []any) (any, error) {
		if vals[0] == nil || vals[1] == nil {
			return false, nil
		}
		s, ok1 := vals[0].(string)
		sub, ok2 := vals[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: expected strings", table.ErrTypeMismatch)
		}
		return fn(s, sub), nil
	}}
}

func stringMap(fn func(s string) any, kind table.Kind) elementFunc {
	return elementFunc{min: 1, max: 1, kind: fixed(kind), apply: func(vals []any) (any, error) {
		if vals[0] == nil {
			return nil, nil
		}
		s, ok := vals[0].(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected a string, got %s", table.ErrTypeMismatch, describeValue(vals[0]))
		}
		return fn(s), nil
	}}
}

func timePart(fn func(t time.Time) int) elementFunc {
	return elementFunc{min: 1, max: 1, kind: fixed(table.KindInt), apply: func(vals []any) (any, error) {
		t, err := toTime(vals[0])
		if err != nil || t == nil {
			return nil, err
		}
		return int64(fn(*t)), nil
	}}
}

func toTime(v any) (*time.Time, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &x, nil
	case string:
		t, err := parseTime(x)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	return nil, fmt.Errorf("%w: %s is not a date", table.ErrTypeMismatch, describeValue(v))
}

var elementFuncs map[string]elementFunc

func init() {
	elementFuncs = map[string]elementFunc{
		"is_null": {min: 1, max: 1, kind: fixed(table.KindBool), apply: func(vals []any) (any, error) {
			return vals[0] == nil, nil
		}},
		"not_null": {min: 1, max: 1, kind: fixed(table.KindBool), apply: func(vals []any) (any, error) {
			return vals[0] != nil, nil
		}},
		"isin": {min: 2, max: 2, kind: func(args []any) (table.Kind, error) {
			if _, ok := args[1].([]any); !ok {
				return 0, fmt.Errorf("%w: isin needs a list", ErrArgument)
			}
			return table.KindBool, nil
		}, apply: func(vals []any) (any, error) {
			for _, candidate := range vals[1].([]any) {
				if table.Equal(vals[0], candidate) {
					return true, nil
				}
			}
			return false, nil
		}},
		"between": {min: 3, max: 3, kind: fixed(table.KindBool), apply: func(vals []any) (any, error) {
			lo, err := binaryScalar(TokenGE, vals[0], vals[1])
			if err != nil {
				return nil, err
			}
			hi, err := binaryScalar(TokenLE, vals[0], vals[2])
			if err != nil {
				return nil, err
			}
			return lo == true && hi == true, nil
		}},
		"contains":    stringPredicate(strings.Contains),
		"starts_with": stringPredicate(strings.HasPrefix),
		"ends_with":   stringPredicate(strings.HasSuffix),
		"upper":       stringMap(func(s string) any { return strings.ToUpper(s) }, table.KindString),
		"lower":       stringMap(func(s string) any { return strings.ToLower(s) }, table.KindString),
		"trim":        stringMap(func(s string) any { return strings.TrimSpace(s) }, table.KindString),
		"len":         stringMap(func(s string) any { return int64(utf8.RuneCountInString(s)) }, table.KindInt),
		"replace": {min: 3, max: 3, kind: fixed(table.KindString), apply: func(vals []any) (any, error) {
			if vals[0] == nil {
				return nil, nil
			}
			s, ok1 := vals[0].(string)
			old, ok2 := vals[1].(string)
			repl, ok3 := vals[2].(string)
			if !ok1 || !ok2 || !ok3 {
				return nil, fmt.Errorf("%w: replace expects strings", table.ErrTypeMismatch)
			}
			return strings.ReplaceAll(s, old, repl), nil
		}},
		"concat": {min: 1, max: -1, kind: fixed(table.KindString), apply: func(vals []any) (any, error) {
			var sb strings.Builder
			for _, v := range vals {
				if v == nil {
					return nil, nil
				}
				sb.WriteString(table.FormatValue(v))
			}
			return sb.String(), nil
		}},
		"abs": {min: 1, max: 1, kind: sameAsFirst, apply: func(vals []any) (any, error) {
			switch x := vals[0].(type) {
			case int64:
				if x < 0 {
					return -x, nil
				}
				return x, nil
			case float64:
				return math.Abs(x), nil
			}
			return nil, nil
		}},
		"round": {min: 1, max: 2, kind: sameAsFirst, apply: func(vals []any) (any, error) {
			digits := int64(0)
			if len(vals) == 2 {
				d, ok := vals[1].(int64)
				if !ok {
					return nil, fmt.Errorf("%w: round digits must be an integer", ErrArgument)
				}
				digits = d
			}
			switch x := vals[0].(type) {
			case int64:
				return x, nil
			case float64:
				scale := math.Pow(10, float64(digits))
				return math.Round(x*scale) / scale, nil
			}
			return nil, nil
		}},
		"coalesce": {min: 1, max: -1, kind: unifyArgs, apply: func(vals []any) (any, error) {
			for _, v := range vals {
				if v != nil {
					return v, nil
				}
			}
			return nil, nil
		}},
		"if_else": {min: 3, max: 3, kind: func(args []any) (table.Kind, error) {
			return unifyArgs(args[1:])
		}, apply: func(vals []any) (any, error) {
			if vals[0] == true {
				return vals[1], nil
			}
			return vals[2], nil
		}},
		"date": {min: 1, max: 1, kind: fixed(table.KindTime), apply: func(vals []any) (any, error) {
			t, err := toTime(vals[0])
			if err != nil || t == nil {
				return nil, err
			}
			return *t, nil
		}},
		"year":  timePart(func(t time.Time) int { return t.Year() }),
		"month": timePart(func(t time.Time) int { return int(t.Month()) }),
		"day":   timePart(func(t time.Time) int { return t.Day() }),
	}
	elementFuncs["length"] = elementFuncs["len"]
}
