package dsl

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/akhildatla/tabular/pkg/table"
)

// Options configures an Interpreter.
type Options struct {
	// MaxSteps bounds the number of evaluated expressions and stages.
	// Zero means unlimited.
	MaxSteps int64

	// Sandbox denies load() unless the path lies under AllowedPaths.
	// Registered frames stay reachable.
	Sandbox bool

	// AllowedPaths lists files or directories load() may read in
	// sandbox mode.
	AllowedPaths []string
}

// Stats describes one run.
type Stats struct {
	Steps    int64
	Stages   int
	Rows     int
	Duration time.Duration
}

// Result is the value of a program: a *table.Table, a *table.Column, a
// []any list, a scalar (int64, float64, string, bool, time.Time) or nil.
type Result struct {
	Value any
	Stats Stats
}

// Table returns the result as a table.
func (r *Result) Table() (*table.Table, bool) {
	t, ok := r.Value.(*table.Table)
	return t, ok
}

// Interpreter evaluates programs against registered frames. Variables
// persist across runs until Reset. An Interpreter is not safe for
// concurrent use.
type Interpreter struct {
	opts   Options
	frames map[string]*table.Table
	vars   map[string]any

	ctx    context.Context
	steps  int64
	stages int
}

// New creates an interpreter.
func New(opts Options) *Interpreter {
	return &Interpreter{
		opts:   opts,
		frames: make(map[string]*table.Table),
		vars:   make(map[string]any),
	}
}

// RegisterFrame makes t reachable by name.
func (in *Interpreter) RegisterFrame(name string, t *table.Table) {
	in.frames[name] = t
}

// Frame returns a registered frame.
func (in *Interpreter) Frame(name string) (*table.Table, bool) {
	t, ok := in.frames[name]
	return t, ok
}

// FrameNames returns the registered frame names in order.
func (in *Interpreter) FrameNames() []string {
	return sortedKeys(in.frames)
}

// Vars returns a copy of the variables set by earlier runs.
func (in *Interpreter) Vars() map[string]any {
	out := make(map[string]any, len(in.vars))
	for k, v := range in.vars {
		out[k] = unwrap(v)
	}
	return out
}

// Reset forgets every variable. Registered frames are kept.
func (in *Interpreter) Reset() {
	in.vars = make(map[string]any)
}

// Exec parses and runs src.
func (in *Interpreter) Exec(ctx context.Context, src string) (*Result, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return in.Run(ctx, prog)
}

// Run evaluates the program. The result is the value of the return
// statement, or of the last expression statement when there is none.
func (in *Interpreter) Run(ctx context.Context, prog *Program) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	in.ctx = ctx
	in.steps = 0
	in.stages = 0

	var last any
	for _, stmt := range prog.Statements {
		v, done, err := in.execStmt(stmt)
		if err != nil {
			return nil, &LineError{Line: stmt.Line(), Err: err}
		}
		if _, ok := stmt.(*AssignStmt); !ok {
			last = v
		}
		if done {
			break
		}
	}

	res := &Result{
		Value: unwrap(last),
		Stats: Stats{
			Steps:    in.steps,
			Stages:   in.stages,
			Duration: time.Since(start),
		},
	}
	res.Stats.Rows = rowCount(res.Value)

	zerolog.Ctx(ctx).Debug().
		Int64("steps", res.Stats.Steps).
		Int("stages", res.Stats.Stages).
		Int("rows", res.Stats.Rows).
		Dur("took", res.Stats.Duration).
		Msg("program finished")
	return res, nil
}

func (in *Interpreter) execStmt(stmt Stmt) (any, bool, error) {
	switch s := stmt.(type) {
	case *AssignStmt:
		v, err := in.eval(s.Value, nil)
		if err != nil {
			return nil, false, err
		}
		in.vars[s.Name] = v
		return v, false, nil
	case *ReturnStmt:
		v, err := in.eval(s.Value, nil)
		return v, true, err
	case *ExprStmt:
		v, err := in.eval(s.Expr, nil)
		return v, false, err
	default:
		return nil, false, fmt.Errorf("%w: statement %T", ErrSyntax, stmt)
	}
}

// step charges one unit of work and observes cancellation.
func (in *Interpreter) step() error {
	in.steps++
	if in.opts.MaxSteps > 0 && in.steps > in.opts.MaxSteps {
		return fmt.Errorf("%w: %d", ErrStepLimit, in.opts.MaxSteps)
	}
	if in.ctx != nil {
		if err := in.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// lookup resolves a bare name: a column of the current frame, then a
// variable, then a registered frame.
func (in *Interpreter) lookup(name string, sc *scope) (any, error) {
	if sc != nil && sc.frame != nil && sc.frame.HasColumn(name) {
		return sc.frame.Column(name)
	}
	if v, ok := in.vars[name]; ok {
		return v, nil
	}
	if t, ok := in.frames[name]; ok {
		return t, nil
	}
	if sc != nil && sc.frame != nil {
		return nil, fmt.Errorf("%w: %q is neither a column nor a variable", ErrUndefined, name)
	}
	return nil, fmt.Errorf("%w: %q", ErrUndefined, name)
}

func (in *Interpreter) checkPath(path string) error {
	if !in.opts.Sandbox {
		return nil
	}
	target, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSandboxViolation, path)
	}
	for _, allowed := range in.opts.AllowedPaths {
		dir, err := resolvePath(allowed)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(dir, target)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return nil
		}
	}
	return fmt.Errorf("%w: load(%q) outside allowed paths", ErrSandboxViolation, path)
}

// resolvePath returns the absolute path with symlinks followed. A path
// that does not exist yet is only made absolute.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

// unwrap converts interpreter-internal values to public ones.
func unwrap(v any) any {
	if g, ok := v.(*grouped); ok {
		return g.t
	}
	return v
}

func rowCount(v any) int {
	switch val := v.(type) {
	case nil:
		return 0
	case *table.Table:
		return val.NRows()
	case *table.Column:
		return val.Len()
	case []any:
		return len(val)
	default:
		return 1
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
