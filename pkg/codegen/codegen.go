// Package codegen turns natural-language instructions into pipeline
// programs with a language model and runs them in the sandboxed
// interpreter.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/akhildatla/tabular/pkg/dsl"
	"github.com/akhildatla/tabular/pkg/embed"
	"github.com/akhildatla/tabular/pkg/table"
)

var (
	ErrEmptyInstruction = errors.New("empty instruction")
	ErrEmptyProgram     = errors.New("generator returned no program")
	ErrNotTable         = errors.New("program did not produce a table")
)

// Generator produces program text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options bound the execution of generated programs.
type Options struct {
	MaxSteps int64
	Timeout  time.Duration
}

// DefaultOptions returns the limits used when a field is zero.
func DefaultOptions() Options {
	return Options{MaxSteps: 100_000, Timeout: 30 * time.Second}
}

// Transformation is a generated program and the table it produced.
type Transformation struct {
	Program string
	Table   *table.Table
	Stats   dsl.Stats
}

// Transform asks gen for a program implementing instruction over t and
// runs it with the sandbox on. t is visible to the program as df and no
// file can be loaded.
func Transform(ctx context.Context, gen Generator, t *table.Table, instruction string, opts Options) (*Transformation, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, ErrEmptyInstruction
	}
	def := DefaultOptions()
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = def.MaxSteps
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	logger := zerolog.Ctx(ctx)

	raw, err := gen.Generate(ctx, BuildPrompt(instruction, t))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	program := StripFences(raw)
	if program == "" {
		return nil, ErrEmptyProgram
	}
	logger.Debug().Str("program", program).Msg("generated program")

	res, err := embed.Execute(program,
		embed.WithContext(ctx),
		embed.WithFrame(FrameName, t),
		embed.WithSandbox(),
		embed.WithMaxSteps(opts.MaxSteps),
		embed.WithTimeout(opts.Timeout),
	)
	if err != nil {
		return &Transformation{Program: program}, fmt.Errorf("run generated program: %w", err)
	}
	out, ok := res.Table()
	if !ok {
		return &Transformation{Program: program}, fmt.Errorf("%w: got %T", ErrNotTable, res.Value)
	}
	return &Transformation{Program: program, Table: out, Stats: res.Stats}, nil
}
