package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/akhildatla/tabular/pkg/embed"
	"github.com/akhildatla/tabular/pkg/optimizer"
)

func addOutputFlags(cmd *cobra.Command, o *outputOptions) {
	cmd.Flags().StringVar(&o.format, "format", "", "output format: table, csv, tsv, parquet, chart (default from --out extension, else table)")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the result to this file")
	cmd.Flags().IntVar(&o.maxRows, "max-rows", 0, "rows shown in table output (default from config)")
	cmd.Flags().StringVar(&o.chartX, "x", "", "chart: column labelling the x axis")
	cmd.Flags().StringSliceVar(&o.chartY, "y", nil, "chart: columns to plot (default: all numeric)")
	cmd.Flags().IntVar(&o.height, "height", 10, "chart: plot height in lines")
}

func newRunCmd(a *app) *cobra.Command {
	var (
		frameFlags []string
		sep        string
		sandbox    bool
		noOptimize bool
		maxSteps   int64
		timeout    time.Duration
		out        outputOptions
	)

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a pipeline program",
		Long: `Runs a program file. Frames given with --frame are reachable by name.

Example:
  tabular run report.tab --frame sales=sales.csv --format csv --out report.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			frames, err := loadFrames(frameFlags, sep)
			if err != nil {
				return err
			}

			opts := []embed.Option{
				embed.WithContext(ctx),
				embed.WithFrames(frames),
				embed.WithLogger(a.logger),
			}
			if sandbox || a.cfg.Exec.Sandbox {
				opts = append(opts, embed.WithSandbox(), embed.WithAllowedPaths(a.cfg.Exec.AllowedPaths...))
			}
			if maxSteps == 0 {
				maxSteps = a.cfg.Exec.MaxSteps
			}
			if maxSteps > 0 {
				opts = append(opts, embed.WithMaxSteps(maxSteps))
			}
			if timeout == 0 {
				timeout = a.cfg.Exec.Timeout
			}
			if timeout > 0 {
				opts = append(opts, embed.WithTimeout(timeout))
			}
			if a.cfg.Exec.Optimize && !noOptimize {
				opts = append(opts, embed.WithOptimize(optimizer.WithAllOptimizations()))
			}

			res, err := embed.ExecuteFile(args[0], opts...)
			if err != nil {
				return err
			}
			a.logger.Info().
				Int64("steps", res.Stats.Steps).
				Int("stages", res.Stats.Stages).
				Dur("took", res.Stats.Duration).
				Msg("program finished")

			if out.maxRows == 0 {
				out.maxRows = a.cfg.Exec.MaxRows
			}
			return writeValue(ctx, cmd.OutOrStdout(), res.Value, out)
		},
	}
	cmd.Flags().StringArrayVarP(&frameFlags, "frame", "f", nil, "register a frame: name=path (repeatable)")
	cmd.Flags().StringVar(&sep, "sep", "", "CSV field separator for --frame files")
	cmd.Flags().BoolVar(&sandbox, "sandbox", false, "restrict load() to the configured allowed paths")
	cmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "skip the optimizer passes")
	cmd.Flags().Int64Var(&maxSteps, "max-steps", 0, "step limit (0: config value)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "execution timeout (0: config value)")
	addOutputFlags(cmd, &out)
	return cmd
}
