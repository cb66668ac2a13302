package dsl

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/akhildatla/tabular/pkg/table"
)

// scope is the frame a column expression is evaluated against. keys is
// set when the frame is grouped.
type scope struct {
	frame *table.Table
	keys  []string
}

func (sc *scope) rows() int {
	if sc == nil || sc.frame == nil {
		return -1
	}
	return sc.frame.NRows()
}

// grouped is a frame annotated by group_by for the following stage.
type grouped struct {
	t    *table.Table
	keys []string
}

// valueExpr carries an already evaluated value, such as the piped input
// passed to a function.
type valueExpr struct {
	v any
}

func (*valueExpr) node() {}
func (*valueExpr) expr() {}

func (in *Interpreter) eval(e Expr, sc *scope) (any, error) {
	if err := in.step(); err != nil {
		return nil, err
	}

	switch n := e.(type) {
	case nil:
		return nil, fmt.Errorf("%w: missing expression", ErrSyntax)
	case *valueExpr:
		return n.v, nil
	case *IntLit:
		return n.Value, nil
	case *FloatLit:
		return n.Value, nil
	case *StringLit:
		return n.Value, nil
	case *BoolLit:
		return n.Value, nil
	case *NullLit:
		return nil, nil
	case *ListLit:
		return in.evalList(n, sc)
	case *Ident:
		return in.lookup(n.Name, sc)
	case *BinaryExpr:
		return in.evalBinary(n, sc)
	case *UnaryExpr:
		return in.evalUnary(n, sc)
	case *MemberExpr:
		return in.evalMember(n, sc)
	case *IndexExpr:
		return in.evalIndex(n, sc)
	case *CallExpr:
		return in.evalCall(n, sc)
	case *PipeExpr:
		return in.evalPipe(n, sc)
	case *FilterExpr, *SelectExpr, *MutateExpr, *GroupByExpr, *SummarizeExpr, *JoinExpr:
		return nil, fmt.Errorf("%w: %s is only valid after |>", ErrArgument, stageName(e))
	default:
		return nil, fmt.Errorf("%w: expression %T", ErrSyntax, e)
	}
}

func (in *Interpreter) evalList(l *ListLit, sc *scope) (any, error) {
	out := make([]any, len(l.Elems))
	for i, el := range l.Elems {
		v, err := in.eval(el, sc)
		if err != nil {
			return nil, err
		}
		if !isScalar(v) {
			return nil, fmt.Errorf("%w: list elements must be scalars, got %s", ErrArgument, describeValue(v))
		}
		out[i] = v
	}
	return out, nil
}

func (in *Interpreter) evalMember(m *MemberExpr, sc *scope) (any, error) {
	obj, err := in.eval(m.Object, sc)
	if err != nil {
		return nil, err
	}
	t, ok := asFrame(obj)
	if !ok {
		return nil, fmt.Errorf("%w: .%s on %s", ErrArgument, m.Member, describeValue(obj))
	}
	return t.Column(m.Member)
}

func (in *Interpreter) evalIndex(ix *IndexExpr, sc *scope) (any, error) {
	obj, err := in.eval(ix.Object, sc)
	if err != nil {
		return nil, err
	}
	idx, err := in.eval(ix.Index, sc)
	if err != nil {
		return nil, err
	}

	if t, ok := asFrame(obj); ok {
		name, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("%w: frame index must be a column name", ErrArgument)
		}
		return t.Column(name)
	}

	i, ok := idx.(int64)
	if !ok {
		return nil, fmt.Errorf("%w: index must be an integer, got %s", ErrArgument, describeValue(idx))
	}
	switch val := obj.(type) {
	case *table.Column:
		if i < 0 || int(i) >= val.Len() {
			return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrArgument, i, val.Len())
		}
		return val.Value(int(i)), nil
	case []any:
		if i < 0 || int(i) >= len(val) {
			return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrArgument, i, len(val))
		}
		return val[i], nil
	}
	return nil, fmt.Errorf("%w: cannot index %s", ErrArgument, describeValue(obj))
}

func (in *Interpreter) evalBinary(b *BinaryExpr, sc *scope) (any, error) {
	left, err := in.eval(b.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := in.eval(b.Right, sc)
	if err != nil {
		return nil, err
	}

	kind, err := binaryKind(b.Op, left, right)
	if err != nil {
		return nil, err
	}
	return broadcast(kind, []any{left, right}, func(vals []any) (any, error) {
		return binaryScalar(b.Op, vals[0], vals[1])
	})
}

func (in *Interpreter) evalUnary(u *UnaryExpr, sc *scope) (any, error) {
	v, err := in.eval(u.Right, sc)
	if err != nil {
		return nil, err
	}

	switch u.Op {
	case TokenNot:
		return broadcast(table.KindBool, []any{v}, func(vals []any) (any, error) {
			switch x := vals[0].(type) {
			case nil:
				return nil, nil
			case bool:
				return !x, nil
			}
			return nil, fmt.Errorf("%w: not %s", table.ErrTypeMismatch, describeValue(vals[0]))
		})
	case TokenMinus:
		kind, ok := kindOf(v)
		if ok && !kind.Numeric() {
			return nil, fmt.Errorf("%w: -%s", table.ErrTypeMismatch, kind)
		}
		if !ok {
			kind = table.KindFloat
		}
		return broadcast(kind, []any{v}, func(vals []any) (any, error) {
			switch x := vals[0].(type) {
			case int64:
				return -x, nil
			case float64:
				return -x, nil
			}
			return nil, nil
		})
	}
	return nil, fmt.Errorf("%w: unary %s", ErrSyntax, u.Op)
}

// broadcast applies fn row by row when any argument is a column, and
// once otherwise. Lists are passed through whole.
func broadcast(kind table.Kind, args []any, fn func(vals []any) (any, error)) (any, error) {
	n, name := -1, ""
	for _, a := range args {
		switch v := a.(type) {
		case *table.Column:
			if n >= 0 && v.Len() != n {
				return nil, fmt.Errorf("%w: %d and %d rows", table.ErrLengthMismatch, n, v.Len())
			}
			n = v.Len()
			if name == "" {
				name = v.Name()
			}
		case *table.Table, *grouped:
			return nil, fmt.Errorf("%w: frame used where a value is expected", ErrArgument)
		}
	}
	if n < 0 {
		return fn(args)
	}

	out := make([]any, n)
	row := make([]any, len(args))
	for i := 0; i < n; i++ {
		for j, a := range args {
			row[j] = valueAt(a, i)
		}
		v, err := fn(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return table.NewColumn(name, kind, out)
}

func valueAt(v any, i int) any {
	if c, ok := v.(*table.Column); ok {
		return c.Value(i)
	}
	return v
}

// binaryKind checks operand kinds and returns the result kind.
func binaryKind(op TokenType, left, right any) (table.Kind, error) {
	lk, lok := kindOf(left)
	rk, rok := kindOf(right)

	switch op {
	case TokenAnd, TokenOr:
		for _, k := range []struct {
			kind table.Kind
			ok   bool
		}{{lk, lok}, {rk, rok}} {
			if k.ok && k.kind != table.KindBool {
				return 0, fmt.Errorf("%w: %s operand is %s", table.ErrTypeMismatch, op, k.kind)
			}
		}
		return table.KindBool, nil
	case TokenEQ, TokenNE, TokenLT, TokenLE, TokenGT, TokenGE:
		if lok && rok && !comparableKinds(lk, rk) {
			return 0, fmt.Errorf("%w: cannot compare %s with %s", table.ErrTypeMismatch, lk, rk)
		}
		return table.KindBool, nil
	}

	switch {
	case !lok && !rok:
		return table.KindFloat, nil
	case !lok:
		lk = rk
	case !rok:
		rk = lk
	}
	if lk == table.KindString && rk == table.KindString && op == TokenPlus {
		return table.KindString, nil
	}
	if !lk.Numeric() || !rk.Numeric() {
		return 0, fmt.Errorf("%w: %s %s %s", table.ErrTypeMismatch, lk, op, rk)
	}
	if op == TokenSlash || lk == table.KindFloat || rk == table.KindFloat {
		return table.KindFloat, nil
	}
	return table.KindInt, nil
}

func comparableKinds(a, b table.Kind) bool {
	switch {
	case a == b:
		return true
	case a.Numeric() && b.Numeric():
		return true
	case a == table.KindTime && b == table.KindString, a == table.KindString && b == table.KindTime:
		return true
	}
	return false
}

// binaryScalar applies op to two values. Arithmetic with null is null,
// comparisons with null are false, and division by zero is null.
func binaryScalar(op TokenType, a, b any) (any, error) {
	switch op {
	case TokenAnd:
		return a == true && b == true, nil
	case TokenOr:
		return a == true || b == true, nil
	case TokenEQ, TokenNE, TokenLT, TokenLE, TokenGT, TokenGE:
		if a == nil || b == nil {
			return false, nil
		}
		a, b, err := coerceTimes(a, b)
		if err != nil {
			return nil, err
		}
		c := table.Compare(a, b)
		switch op {
		case TokenEQ:
			return c == 0, nil
		case TokenNE:
			return c != 0, nil
		case TokenLT:
			return c < 0, nil
		case TokenLE:
			return c <= 0, nil
		case TokenGT:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	}

	if a == nil || b == nil {
		return nil, nil
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok || op != TokenPlus {
			return nil, fmt.Errorf("%w: string %s %T", table.ErrTypeMismatch, op, b)
		}
		return as + bs, nil
	}

	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt && op != TokenSlash {
		switch op {
		case TokenPlus:
			return ai + bi, nil
		case TokenMinus:
			return ai - bi, nil
		case TokenStar:
			return ai * bi, nil
		case TokenPercent:
			if bi == 0 {
				return nil, nil
			}
			return ai % bi, nil
		}
	}

	af, ok1 := toFloat(a)
	bf, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: %T %s %T", table.ErrTypeMismatch, a, op, b)
	}
	switch op {
	case TokenPlus:
		return af + bf, nil
	case TokenMinus:
		return af - bf, nil
	case TokenStar:
		return af * bf, nil
	case TokenSlash:
		if bf == 0 {
			return nil, nil
		}
		return af / bf, nil
	case TokenPercent:
		if bf == 0 {
			return nil, nil
		}
		return math.Mod(af, bf), nil
	}
	return nil, fmt.Errorf("%w: operator %s", ErrSyntax, op)
}

// coerceTimes parses a string compared against a time.
func coerceTimes(a, b any) (any, any, error) {
	var err error
	if _, ok := a.(time.Time); ok {
		if s, ok := b.(string); ok {
			b, err = parseTime(s)
		}
	} else if _, ok := b.(time.Time); ok {
		if s, ok := a.(string); ok {
			a, err = parseTime(s)
		}
	}
	return a, b, err
}

var timeLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date", table.ErrTypeMismatch, s)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// kindOf reports the kind of a column or non-null scalar.
func kindOf(v any) (table.Kind, bool) {
	if c, ok := v.(*table.Column); ok {
		return c.Kind(), true
	}
	return table.KindOf(v)
}

func isScalar(v any) bool {
	switch v.(type) {
	case *table.Table, *grouped, *table.Column, []any:
		return false
	}
	return true
}

func asFrame(v any) (*table.Table, bool) {
	switch val := v.(type) {
	case *table.Table:
		return val, true
	case *grouped:
		return val.t, true
	}
	return nil, false
}

func describeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case *table.Table:
		return fmt.Sprintf("frame(%d rows)", val.NRows())
	case *grouped:
		return fmt.Sprintf("grouped frame by %s", strings.Join(val.keys, ", "))
	case *table.Column:
		return fmt.Sprintf("column %s", val.Name())
	case []any:
		return "list"
	}
	if k, ok := table.KindOf(v); ok {
		return k.String()
	}
	return fmt.Sprintf("%T", v)
}
