// Package embed runs pipe programs from Go code. Pass a string, get a
// result.
//
// Basic usage:
//
//	res, err := embed.Execute(`
//	    sales
//	      |> filter(quantity > 10)
//	      |> summarize(avg_price = mean(price))
//	`, embed.WithFrame("sales", sales))
//
// Programs are sandboxed with embed.WithSandbox, which confines load()
// to embed.WithAllowedPaths and leaves only registered frames reachable.
package embed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rs/zerolog"

	"github.com/akhildatla/tabular/pkg/dsl"
	"github.com/akhildatla/tabular/pkg/optimizer"
	"github.com/akhildatla/tabular/pkg/table"
)

// Common errors
var (
	ErrTimeout          = errors.New("execution timeout exceeded")
	ErrStepLimit        = dsl.ErrStepLimit
	ErrSandboxViolation = dsl.ErrSandboxViolation
)

// Result is the value a program produced and how much work it took.
type Result struct {
	// Value is a *table.Table, a *table.Column, a []any list, a scalar
	// or nil.
	Value any
	Stats dsl.Stats
}

// Table returns the result as a table.
func (r *Result) Table() (*table.Table, bool) {
	t, ok := r.Value.(*table.Table)
	return t, ok
}

// Options configures execution behavior.
type Options struct {
	// Frames are reachable by name from the program.
	Frames map[string]*table.Table

	// Timeout sets maximum execution time. Zero means no timeout.
	Timeout time.Duration

	// MaxSteps limits the number of evaluated expressions and stages.
	// Zero means unlimited.
	MaxSteps int64

	// Sandbox restricts file system access when true.
	// In sandbox mode, only registered frames and AllowedPaths can be used.
	Sandbox bool

	// AllowedPaths lists files or directories load() may read in sandbox
	// mode.
	AllowedPaths []string

	// Context for cancellation. If nil, context.Background() is used.
	Context context.Context

	// Optimize rewrites the program before it runs.
	Optimize   bool
	Optimizers []optimizer.Option

	// Logger receives debug events for the run and each stage.
	Logger *zerolog.Logger

	err error
}

// Option is a functional option for configuring execution.
type Option func(*Options)

// WithFrames registers several frames.
func WithFrames(frames map[string]*table.Table) Option {
	return func(o *Options) {
		for name, t := range frames {
			o.Frames[name] = t
		}
	}
}

// WithFrame registers one frame.
func WithFrame(name string, t *table.Table) Option {
	return func(o *Options) {
		o.Frames[name] = t
	}
}

// WithDataFrame registers a dataframe-go frame.
func WithDataFrame(name string, df *dataframe.DataFrame) Option {
	return func(o *Options) {
		t, err := table.FromDataFrame(df)
		if err != nil {
			o.err = fmt.Errorf("frame %s: %w", name, err)
			return
		}
		o.Frames[name] = t
	}
}

// WithTimeout sets execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithMaxSteps sets the step limit.
func WithMaxSteps(n int64) Option {
	return func(o *Options) {
		o.MaxSteps = n
	}
}

// WithSandbox enables sandbox mode.
func WithSandbox() Option {
	return func(o *Options) {
		o.Sandbox = true
	}
}

// WithAllowedPaths sets paths accessible in sandbox mode.
func WithAllowedPaths(paths ...string) Option {
	return func(o *Options) {
		o.AllowedPaths = paths
	}
}

// WithContext sets the context for cancellation.
func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

// WithOptimize runs the optimizer before execution, with every pass
// enabled unless opts pick some.
func WithOptimize(opts ...optimizer.Option) Option {
	return func(o *Options) {
		o.Optimize = true
		o.Optimizers = opts
	}
}

// WithLogger sets the logger for the run.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = &l
	}
}

// Execute parses and runs a program.
//
// Example:
//
//	res, err := embed.Execute(code,
//	    embed.WithTimeout(5*time.Second),
//	    embed.WithMaxSteps(10000),
//	    embed.WithSandbox(),
//	    embed.WithFrame("data", t),
//	)
func Execute(code string, opts ...Option) (*Result, error) {
	options := &Options{
		Context: context.Background(),
		Frames:  make(map[string]*table.Table),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.err != nil {
		return nil, options.err
	}

	program, err := dsl.Parse(code)
	if err != nil {
		return nil, err
	}
	if options.Optimize {
		optOpts := options.Optimizers
		if len(optOpts) == 0 {
			optOpts = []optimizer.Option{optimizer.WithAllOptimizations()}
		}
		program = optimizer.New(optOpts...).Optimize(program)
	}

	in := dsl.New(dsl.Options{
		MaxSteps:     options.MaxSteps,
		Sandbox:      options.Sandbox,
		AllowedPaths: options.AllowedPaths,
	})
	for name, t := range options.Frames {
		in.RegisterFrame(name, t)
	}

	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if options.Logger != nil {
		ctx = options.Logger.WithContext(ctx)
	}
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	res, err := in.Run(ctx, program)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, err
	}
	return &Result{Value: res.Value, Stats: res.Stats}, nil
}

// ExecuteFile reads a program file and executes it.
func ExecuteFile(path string, opts ...Option) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Execute(string(data), opts...)
}
