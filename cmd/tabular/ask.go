package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akhildatla/tabular/internal/config"
	"github.com/akhildatla/tabular/pkg/codegen"
)

// newGenerator is swapped out in tests.
var newGenerator = func(ctx context.Context, cfg *config.Config) (codegen.Generator, error) {
	return codegen.NewGemini(ctx, codegen.GeminiConfig{
		APIKey: cfg.Codegen.APIKey,
		Model:  cfg.Codegen.Model,
	})
}

func newAskCmd(a *app) *cobra.Command {
	var (
		frameFlag string
		sep       string
		showCode  bool
		out       outputOptions
	)

	cmd := &cobra.Command{
		Use:   "ask INSTRUCTION",
		Short: "Transform a frame from a natural-language instruction",
		Long: `Asks a language model for a program implementing INSTRUCTION over the
frame given with --frame and runs it in the sandbox. The frame is visible to
the program as df. The API key comes from codegen.api_key, TABULAR_CODEGEN_API_KEY
or GEMINI_API_KEY.

Example:
  tabular ask "average price per category, highest first" --frame sales=sales.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			frames, err := loadFrames([]string{frameFlag}, sep)
			if err != nil {
				return err
			}
			name, _, _ := strings.Cut(frameFlag, "=")
			df := frames[strings.TrimSpace(name)]

			gen, err := newGenerator(ctx, a.cfg)
			if err != nil {
				return err
			}

			res, err := codegen.Transform(ctx, gen, df, strings.Join(args, " "), codegen.Options{
				MaxSteps: a.cfg.Codegen.MaxSteps,
				Timeout:  a.cfg.Codegen.Timeout,
			})
			if res != nil && (showCode || err != nil) {
				fmt.Fprintf(cmd.ErrOrStderr(), "program:\n%s\n\n", res.Program)
			}
			if err != nil {
				return err
			}

			if out.maxRows == 0 {
				out.maxRows = a.cfg.Exec.MaxRows
			}
			return writeTable(ctx, cmd.OutOrStdout(), res.Table, out)
		},
	}
	cmd.Flags().StringVarP(&frameFlag, "frame", "f", "", "input frame: name=path")
	cmd.Flags().StringVar(&sep, "sep", "", "CSV field separator for the frame file")
	cmd.Flags().BoolVar(&showCode, "show-program", false, "print the generated program to stderr")
	_ = cmd.MarkFlagRequired("frame")
	addOutputFlags(cmd, &out)
	return cmd
}
