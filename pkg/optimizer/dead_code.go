package optimizer

import (
	"strings"

	"github.com/akhildatla/tabular/pkg/dsl"
)

// deadCodeElimination removes assignments whose variable is overwritten
// or never read by a later statement. Assignments that load files are
// kept so access errors still surface.
func deadCodeElimination(program *dsl.Program) (*dsl.Program, bool) {
	reads := make([]map[string]bool, len(program.Statements))
	for i, stmt := range program.Statements {
		reads[i] = identifiers(statementExpr(stmt))
	}

	out := &dsl.Program{}
	changed := false
	for i, stmt := range program.Statements {
		a, ok := stmt.(*dsl.AssignStmt)
		if ok && !loads(a.Value) && !liveAfter(a.Name, program.Statements[i+1:], reads[i+1:]) {
			changed = true
			continue
		}
		out.Statements = append(out.Statements, stmt)
	}
	if !changed {
		return program, false
	}
	return out, true
}

// liveAfter reports whether name is read before it is reassigned.
func liveAfter(name string, stmts []dsl.Stmt, reads []map[string]bool) bool {
	for i, stmt := range stmts {
		if reads[i][name] {
			return true
		}
		if a, ok := stmt.(*dsl.AssignStmt); ok && a.Name == name {
			return false
		}
	}
	return false
}

func statementExpr(stmt dsl.Stmt) dsl.Expr {
	switch s := stmt.(type) {
	case *dsl.AssignStmt:
		return s.Value
	case *dsl.ReturnStmt:
		return s.Value
	case *dsl.ExprStmt:
		return s.Expr
	}
	return nil
}

func loads(e dsl.Expr) bool {
	found := false
	visit(e, func(x dsl.Expr) {
		if c, ok := x.(*dsl.CallExpr); ok && strings.HasPrefix(c.Func, "load") {
			found = true
		}
	})
	return found
}
