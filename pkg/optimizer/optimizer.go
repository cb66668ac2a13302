// Package optimizer rewrites parsed pipe programs into cheaper equivalent
// ones. Every pass preserves the program's result.
package optimizer

import (
	"github.com/akhildatla/tabular/pkg/dsl"
)

// DefaultMaxPasses bounds the fixed-point iteration.
const DefaultMaxPasses = 16

// Optimizer applies optimizations to a parsed program.
type Optimizer struct {
	enableConstantFolding   bool
	enablePredicatePushdown bool
	enableProjectionPruning bool
	enableDeadCode          bool
	maxPasses               int
}

// Option is a functional option for the Optimizer.
type Option func(*Optimizer)

// WithConstantFolding enables constant folding optimization.
func WithConstantFolding() Option {
	return func(o *Optimizer) {
		o.enableConstantFolding = true
	}
}

// WithPredicatePushdown enables filter fusion and pushdown.
func WithPredicatePushdown() Option {
	return func(o *Optimizer) {
		o.enablePredicatePushdown = true
	}
}

// WithProjectionPruning enables collapsing of adjacent select and head
// stages.
func WithProjectionPruning() Option {
	return func(o *Optimizer) {
		o.enableProjectionPruning = true
	}
}

// WithDeadCodeElimination enables removal of assignments nothing reads.
// Leave it off when variables outlive the program, as in a REPL.
func WithDeadCodeElimination() Option {
	return func(o *Optimizer) {
		o.enableDeadCode = true
	}
}

// WithAllOptimizations enables all optimizations.
func WithAllOptimizations() Option {
	return func(o *Optimizer) {
		o.enableConstantFolding = true
		o.enablePredicatePushdown = true
		o.enableProjectionPruning = true
		o.enableDeadCode = true
	}
}

// WithMaxPasses bounds the number of rounds over the program.
func WithMaxPasses(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.maxPasses = n
		}
	}
}

// New creates a new Optimizer with the given options.
func New(opts ...Option) *Optimizer {
	opt := &Optimizer{maxPasses: DefaultMaxPasses}
	for _, o := range opts {
		o(opt)
	}
	return opt
}

type pass func(*dsl.Program) (*dsl.Program, bool)

// Optimize applies the enabled passes until none of them changes the
// program. The input program is not modified.
func (o *Optimizer) Optimize(program *dsl.Program) *dsl.Program {
	var passes []pass
	if o.enableConstantFolding {
		passes = append(passes, constantFolding)
	}
	if o.enablePredicatePushdown {
		passes = append(passes, predicatePushdown)
	}
	if o.enableProjectionPruning {
		passes = append(passes, projectionPruning)
	}
	if o.enableDeadCode {
		passes = append(passes, deadCodeElimination)
	}

	result := program
	for i := 0; i < o.maxPasses; i++ {
		changed := false
		for _, p := range passes {
			var c bool
			result, c = p(result)
			changed = changed || c
		}
		if !changed {
			break
		}
	}
	return result
}

// rewriteStatements applies fn to the expression of every statement.
func rewriteStatements(program *dsl.Program, fn func(dsl.Expr) dsl.Expr) *dsl.Program {
	out := &dsl.Program{Statements: make([]dsl.Stmt, len(program.Statements))}
	for i, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *dsl.AssignStmt:
			out.Statements[i] = &dsl.AssignStmt{Name: s.Name, Value: fn(s.Value), Pos: s.Pos}
		case *dsl.ReturnStmt:
			out.Statements[i] = &dsl.ReturnStmt{Value: fn(s.Value), Pos: s.Pos}
		case *dsl.ExprStmt:
			out.Statements[i] = &dsl.ExprStmt{Expr: fn(s.Expr), Pos: s.Pos}
		default:
			out.Statements[i] = stmt
		}
	}
	return out
}
