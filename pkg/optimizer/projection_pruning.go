package optimizer

import (
	"github.com/akhildatla/tabular/pkg/dsl"
)

// projectionPruning collapses adjacent row limits:
//
//	t |> head(10) |> head(3)   =>   t |> head(3)
//	t |> tail(10) |> tail(3)   =>   t |> tail(3)
func projectionPruning(program *dsl.Program) (*dsl.Program, bool) {
	changed := false
	out := rewriteStatements(program, func(e dsl.Expr) dsl.Expr {
		return rewrite(e, func(x dsl.Expr) dsl.Expr {
			outer, ok := x.(*dsl.PipeExpr)
			if !ok {
				return x
			}
			inner, ok := outer.Left.(*dsl.PipeExpr)
			if !ok {
				return x
			}
			kindOuter, n, ok := rowLimit(outer.Right)
			if !ok {
				return x
			}
			kindInner, m, ok := rowLimit(inner.Right)
			if !ok || kindInner != kindOuter {
				return x
			}

			changed = true
			return &dsl.PipeExpr{
				Left:  inner.Left,
				Right: &dsl.CallExpr{Func: kindOuter, Args: []dsl.Expr{&dsl.IntLit{Value: min(n, m)}}},
			}
		})
	})
	return out, changed
}

// rowLimit recognizes head(n) and tail(n) with a literal count.
func rowLimit(e dsl.Expr) (string, int64, bool) {
	call, ok := e.(*dsl.CallExpr)
	if !ok || len(call.Named) > 0 {
		return "", 0, false
	}
	kind := call.Func
	switch kind {
	case "head", "limit", "take":
		kind = "head"
	case "tail":
	default:
		return "", 0, false
	}

	switch len(call.Args) {
	case 0:
		return kind, 5, true
	case 1:
		lit, ok := call.Args[0].(*dsl.IntLit)
		if !ok || lit.Value < 0 {
			return "", 0, false
		}
		return kind, lit.Value, true
	}
	return "", 0, false
}
