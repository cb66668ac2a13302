package main

import (
	"github.com/spf13/cobra"

	"github.com/akhildatla/tabular/internal/httpserver"
	"github.com/akhildatla/tabular/pkg/table"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		frameFlags []string
		sep        string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve frames and sandboxed queries over HTTP",
		Long: `Starts an h2c HTTP server with:

  GET  /hc       health check
  GET  /frames   registered frames and their schemas
  POST /query    {"program": "...", "limit": 100}

Frames come from server.frames in the config and from --frame pairs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := a.cfg.Server
			pairs := make([]string, 0, len(sc.Frames)+len(frameFlags))
			for name, path := range sc.Frames {
				pairs = append(pairs, name+"="+path)
			}
			pairs = append(pairs, frameFlags...)
			frames, err := loadFrames(pairs, sep)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = sc.Addr
			}

			s := httpserver.New(httpserver.Config{
				QueryTimeout: sc.QueryTimeout,
				MaxSteps:     sc.MaxSteps,
				MaxRows:      sc.MaxRows,
				AllowedPaths: a.cfg.Exec.AllowedPaths,
			}, frames, a.logger)
			logFrames(a, frames)
			return s.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringArrayVarP(&frameFlags, "frame", "f", nil, "register a frame: name=path (repeatable)")
	cmd.Flags().StringVar(&sep, "sep", "", "CSV field separator for --frame files")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func logFrames(a *app, frames map[string]*table.Table) {
	for name, t := range frames {
		a.logger.Info().Str("frame", name).Int("rows", t.NRows()).Str("schema", t.Schema().String()).Msg("serving frame")
	}
}
