// Package pipeline chains table operators into named, reusable steps.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/akhildatla/tabular/pkg/table"
)

// Step transforms one table into another.
type Step interface {
	Name() string
	Apply(ctx context.Context, in *table.Table) (*table.Table, error)
}

// Pipeline is an ordered sequence of steps. A Pipeline is itself a Step,
// so pipelines nest.
type Pipeline struct {
	name  string
	steps []Step
}

// New creates a pipeline from steps.
func New(name string, steps ...Step) *Pipeline {
	return &Pipeline{name: name, steps: append([]Step(nil), steps...)}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Steps returns the pipeline's steps in order.
func (p *Pipeline) Steps() []Step { return append([]Step(nil), p.steps...) }

// Then returns a new pipeline with steps appended. The receiver is left
// unchanged.
func (p *Pipeline) Then(steps ...Step) *Pipeline {
	next := make([]Step, 0, len(p.steps)+len(steps))
	next = append(next, p.steps...)
	next = append(next, steps...)
	return &Pipeline{name: p.name, steps: next}
}

// Apply implements Step.
func (p *Pipeline) Apply(ctx context.Context, in *table.Table) (*table.Table, error) {
	return p.Run(ctx, in)
}

// Run applies every step in order and stops at the first error. The
// logger carried by ctx records each step.
func (p *Pipeline) Run(ctx context.Context, in *table.Table) (*table.Table, error) {
	logger := zerolog.Ctx(ctx).With().Str("pipeline", p.name).Logger()
	cur := in
	for i, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline %s step %d (%s): %w", p.name, i, s.Name(), err)
		}
		start := time.Now()
		out, err := s.Apply(ctx, cur)
		if err != nil {
			logger.Debug().Err(err).Int("step", i).Str("op", s.Name()).Msg("step failed")
			return nil, fmt.Errorf("pipeline %s step %d (%s): %w", p.name, i, s.Name(), err)
		}
		logger.Debug().
			Int("step", i).
			Str("op", s.Name()).
			Int("rows_in", cur.NRows()).
			Int("rows_out", out.NRows()).
			Dur("took", time.Since(start)).
			Msg("step done")
		cur = out
	}
	return cur, nil
}

// Func adapts a function to a Step.
func Func(name string, fn func(ctx context.Context, in *table.Table) (*table.Table, error)) Step {
	return funcStep{name: name, fn: fn}
}

type funcStep struct {
	name string
	fn   func(ctx context.Context, in *table.Table) (*table.Table, error)
}

func (s funcStep) Name() string { return s.name }

func (s funcStep) Apply(ctx context.Context, in *table.Table) (*table.Table, error) {
	return s.fn(ctx, in)
}

// pure wraps a context-free operator.
func pure(name string, fn func(in *table.Table) (*table.Table, error)) Step {
	return Func(name, func(_ context.Context, in *table.Table) (*table.Table, error) {
		return fn(in)
	})
}
