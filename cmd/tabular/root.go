package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/akhildatla/tabular/internal/config"
	"github.com/akhildatla/tabular/internal/logging"
	"github.com/akhildatla/tabular/pkg/loader"
	"github.com/akhildatla/tabular/pkg/table"
)

var ErrBadFrameFlag = errors.New("frame flags take the form name=path")

// app holds state shared by the subcommands of one invocation.
type app struct {
	configPath string
	logLevel   string
	pretty     bool

	cfg    *config.Config
	logger zerolog.Logger
	runID  string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tabular",
		Short: "Reshape and aggregate tabular data with a small pipeline language",
		Long: `tabular loads CSV, JSON and Parquet files into typed tables and runs
pipeline programs over them:

  sales |> group_by(category) |> summarize(total = sum(quantity))`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: ./tabular.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.pretty, "pretty", false, "human-readable log output")

	root.AddCommand(
		newRunCmd(a),
		newReplCmd(a),
		newFetchCmd(a),
		newAskCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.pretty {
		cfg.Log.Pretty = true
	}
	a.cfg = cfg

	a.logger, a.runID = logging.WithRunID(logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Out:    cmd.ErrOrStderr(),
	}))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(a.logger.WithContext(ctx))
	a.logger.Debug().Str("command", cmd.Name()).Msg("starting")
	return nil
}

// loadFrames reads name=path pairs. sep overrides the CSV delimiter.
func loadFrames(pairs []string, sep string) (map[string]*table.Table, error) {
	opts, err := csvOptions(sep)
	if err != nil {
		return nil, err
	}
	frames := make(map[string]*table.Table, len(pairs))
	for _, pair := range pairs {
		name, path, ok := strings.Cut(pair, "=")
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadFrameFlag, pair)
		}
		t, err := loader.Load(path, opts)
		if err != nil {
			return nil, fmt.Errorf("frame %s: %w", name, err)
		}
		frames[name] = t
	}
	return frames, nil
}

func csvOptions(sep string) (loader.CSVOptions, error) {
	var opts loader.CSVOptions
	switch r := []rune(sep); len(r) {
	case 0:
	case 1:
		opts.Delimiter = r[0]
	default:
		if sep == `\t` {
			opts.Delimiter = '\t'
			break
		}
		return opts, fmt.Errorf("separator must be one character, got %q", sep)
	}
	return opts, nil
}
