package optimizer

import (
	"github.com/akhildatla/tabular/pkg/dsl"
)

// rowFuncs are the functions whose value on a row depends on that row
// alone.
var rowFuncs = map[string]bool{
	"is_null": true, "not_null": true, "isin": true, "between": true,
	"contains": true, "starts_with": true, "ends_with": true,
	"upper": true, "lower": true, "trim": true, "len": true, "length": true,
	"replace": true, "concat": true, "abs": true, "round": true,
	"coalesce": true, "if_else": true, "date": true, "year": true,
	"month": true, "day": true,
}

// predicatePushdown merges adjacent filters and moves filters ahead of
// select and arrange so later stages see fewer rows.
//
//	t |> select(a, b) |> filter(a > 1) |> filter(b < 2)
//
// Becomes:
//
//	t |> filter(a > 1 and b < 2) |> select(a, b)
//
// A condition moves only when it is row-wise: no aggregates, windows,
// frame references, or variables that might hold a column.
func predicatePushdown(program *dsl.Program) (*dsl.Program, bool) {
	unsafe := columnVariables(program)
	rowWise := func(cond dsl.Expr) bool {
		ok := true
		visit(cond, func(x dsl.Expr) {
			switch n := x.(type) {
			case *dsl.CallExpr:
				if !rowFuncs[n.Func] {
					ok = false
				}
			case *dsl.Ident:
				if unsafe[n.Name] {
					ok = false
				}
			case *dsl.PipeExpr, *dsl.MemberExpr, *dsl.IndexExpr:
				ok = false
			}
		})
		return ok
	}

	changed := false
	out := rewriteStatements(program, func(e dsl.Expr) dsl.Expr {
		return rewrite(e, func(x dsl.Expr) dsl.Expr {
			outer, ok := x.(*dsl.PipeExpr)
			if !ok {
				return x
			}
			filter, ok := outer.Right.(*dsl.FilterExpr)
			if !ok || !rowWise(filter.Condition) {
				return x
			}
			inner, ok := outer.Left.(*dsl.PipeExpr)
			if !ok {
				return x
			}

			switch stage := inner.Right.(type) {
			case *dsl.FilterExpr:
				changed = true
				return &dsl.PipeExpr{
					Left: inner.Left,
					Right: &dsl.FilterExpr{Condition: &dsl.BinaryExpr{
						Left: stage.Condition, Op: dsl.TokenAnd, Right: filter.Condition,
					}},
				}
			case *dsl.SelectExpr:
				if !covers(stage.Columns, identifiers(filter.Condition)) {
					return x
				}
			case *dsl.CallExpr:
				switch stage.Func {
				case "arrange", "sort", "order_by":
				default:
					return x
				}
			default:
				return x
			}

			changed = true
			return &dsl.PipeExpr{
				Left:  &dsl.PipeExpr{Left: inner.Left, Right: filter},
				Right: inner.Right,
			}
		})
	})
	return out, changed
}

// columnVariables returns the assigned names whose value is not a
// literal.
func columnVariables(program *dsl.Program) map[string]bool {
	names := make(map[string]bool)
	for _, stmt := range program.Statements {
		a, ok := stmt.(*dsl.AssignStmt)
		if !ok {
			continue
		}
		switch a.Value.(type) {
		case *dsl.IntLit, *dsl.FloatLit, *dsl.StringLit, *dsl.BoolLit, *dsl.NullLit:
		default:
			names[a.Name] = true
		}
	}
	return names
}

func covers(columns []string, ids map[string]bool) bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	for id := range ids {
		if !set[id] {
			return false
		}
	}
	return true
}
