package optimizer

import (
	"github.com/akhildatla/tabular/pkg/dsl"
)

// constantFolding evaluates operator trees over literals ahead of time.
// For example:
//
//	sales |> filter(price > 10 * 2)
//
// Becomes:
//
//	sales |> filter(price > 20)
//
// Expressions that would fail, such as "a" * 2, are left for the
// interpreter to report.
func constantFolding(program *dsl.Program) (*dsl.Program, bool) {
	changed := false
	out := rewriteStatements(program, func(e dsl.Expr) dsl.Expr {
		return rewrite(e, func(x dsl.Expr) dsl.Expr {
			switch x.(type) {
			case *dsl.BinaryExpr, *dsl.UnaryExpr:
			default:
				return x
			}
			v, ok := dsl.Constant(x)
			if !ok {
				return x
			}
			lit, ok := dsl.Literal(v)
			if !ok {
				return x
			}
			changed = true
			return lit
		})
	})
	return out, changed
}
