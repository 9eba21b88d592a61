package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/nodecop/pkg/mcp"
	"github.com/Sumatoshi-tech/nodecop/pkg/observability"
	"github.com/Sumatoshi-tech/nodecop/pkg/version"
)

func newMCPCommand(root *rootOptions) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the enabled cops as tools that AI agents can discover
and invoke:
  - nodecop_check: run cops over a JSON or YAML tree document
  - nodecop_cops: list the available cops`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			rules, err := cfg.SelectCops(availableCops(), nil)
			if err != nil {
				return err
			}

			maxSize, err := cfg.Input.MaxSizeBytes()
			if err != nil {
				return err
			}

			obsCfg, err := cfg.Observability(observability.ModeMCP, version.Version)
			if err != nil {
				return err
			}

			// Stdout carries the protocol; logs go to stderr as JSON.
			obsCfg.LogJSON = true

			if debug {
				obsCfg.LogLevel = slog.LevelDebug
				obsCfg.Export.UnitSpans = true
			}

			providers, err := observability.Init(obsCfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			copMetrics, err := observability.NewCopMetrics(providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:       providers.Logger,
				Metrics:      red,
				CopMetrics:   copMetrics,
				Tracer:       providers.Tracer,
				Cops:         rules,
				NewRunner:    cfg.NewRunner,
				MaxTreeBytes: maxSize,
			})

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
