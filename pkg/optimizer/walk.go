package optimizer

import "github.com/akhildatla/tabular/pkg/dsl"

// rewrite rebuilds e bottom-up, replacing every node with fn of its
// rewritten self.
func rewrite(e dsl.Expr, fn func(dsl.Expr) dsl.Expr) dsl.Expr {
	if e == nil {
		return nil
	}
	rw := func(x dsl.Expr) dsl.Expr { return rewrite(x, fn) }

	switch n := e.(type) {
	case *dsl.BinaryExpr:
		e = &dsl.BinaryExpr{Left: rw(n.Left), Op: n.Op, Right: rw(n.Right)}
	case *dsl.UnaryExpr:
		e = &dsl.UnaryExpr{Op: n.Op, Right: rw(n.Right)}
	case *dsl.ListLit:
		e = &dsl.ListLit{Elems: rewriteAll(n.Elems, fn)}
	case *dsl.CallExpr:
		e = &dsl.CallExpr{Func: n.Func, Args: rewriteAll(n.Args, fn), Named: rewriteNamed(n.Named, fn)}
	case *dsl.PipeExpr:
		e = &dsl.PipeExpr{Left: rw(n.Left), Right: rw(n.Right)}
	case *dsl.MemberExpr:
		e = &dsl.MemberExpr{Object: rw(n.Object), Member: n.Member}
	case *dsl.IndexExpr:
		e = &dsl.IndexExpr{Object: rw(n.Object), Index: rw(n.Index)}
	case *dsl.FilterExpr:
		e = &dsl.FilterExpr{Condition: rw(n.Condition)}
	case *dsl.MutateExpr:
		out := make([]dsl.Assignment, len(n.Assignments))
		for i, a := range n.Assignments {
			out[i] = dsl.Assignment{Name: a.Name, Value: rw(a.Value)}
		}
		e = &dsl.MutateExpr{Assignments: out}
	case *dsl.SummarizeExpr:
		out := make([]dsl.AggregateAssign, len(n.Aggregations))
		for i, a := range n.Aggregations {
			out[i] = dsl.AggregateAssign{Name: a.Name, Func: a.Func, Args: rewriteAll(a.Args, fn)}
		}
		e = &dsl.SummarizeExpr{Aggregations: out}
	case *dsl.JoinExpr:
		j := *n
		j.Right = rw(n.Right)
		e = &j
	}
	return fn(e)
}

func rewriteAll(exprs []dsl.Expr, fn func(dsl.Expr) dsl.Expr) []dsl.Expr {
	if exprs == nil {
		return nil
	}
	out := make([]dsl.Expr, len(exprs))
	for i, x := range exprs {
		out[i] = rewrite(x, fn)
	}
	return out
}

func rewriteNamed(args []dsl.NamedArg, fn func(dsl.Expr) dsl.Expr) []dsl.NamedArg {
	if args == nil {
		return nil
	}
	out := make([]dsl.NamedArg, len(args))
	for i, a := range args {
		out[i] = dsl.NamedArg{Name: a.Name, Value: rewrite(a.Value, fn)}
	}
	return out
}

// visit calls fn on e and every node below it, parents first.
func visit(e dsl.Expr, fn func(dsl.Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case *dsl.BinaryExpr:
		visit(n.Left, fn)
		visit(n.Right, fn)
	case *dsl.UnaryExpr:
		visit(n.Right, fn)
	case *dsl.ListLit:
		for _, x := range n.Elems {
			visit(x, fn)
		}
	case *dsl.CallExpr:
		for _, x := range n.Args {
			visit(x, fn)
		}
		for _, a := range n.Named {
			visit(a.Value, fn)
		}
	case *dsl.PipeExpr:
		visit(n.Left, fn)
		visit(n.Right, fn)
	case *dsl.MemberExpr:
		visit(n.Object, fn)
	case *dsl.IndexExpr:
		visit(n.Object, fn)
		visit(n.Index, fn)
	case *dsl.FilterExpr:
		visit(n.Condition, fn)
	case *dsl.MutateExpr:
		for _, a := range n.Assignments {
			visit(a.Value, fn)
		}
	case *dsl.SummarizeExpr:
		for _, a := range n.Aggregations {
			for _, x := range a.Args {
				visit(x, fn)
			}
		}
	case *dsl.JoinExpr:
		visit(n.Right, fn)
	}
}

// identifiers returns every bare name read by e.
func identifiers(e dsl.Expr) map[string]bool {
	ids := make(map[string]bool)
	visit(e, func(x dsl.Expr) {
		if id, ok := x.(*dsl.Ident); ok {
			ids[id.Name] = true
		}
	})
	return ids
}
