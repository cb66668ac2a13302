package main

import (
	"github.com/spf13/cobra"

	"github.com/akhildatla/tabular/pkg/dsl"
	"github.com/akhildatla/tabular/pkg/repl"
)

func newReplCmd(a *app) *cobra.Command {
	var (
		frameFlags []string
		sep        string
	)

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := loadFrames(frameFlags, sep)
			if err != nil {
				return err
			}
			r := repl.New(repl.Options{
				Interpreter: dsl.Options{
					MaxSteps:     a.cfg.Exec.MaxSteps,
					Sandbox:      a.cfg.Exec.Sandbox,
					AllowedPaths: a.cfg.Exec.AllowedPaths,
				},
				MaxRows: a.cfg.Exec.MaxRows,
			})
			r.SetFrames(frames)
			r.Start(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&frameFlags, "frame", "f", nil, "register a frame: name=path (repeatable)")
	cmd.Flags().StringVar(&sep, "sep", "", "CSV field separator for --frame files")
	return cmd
}
