package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/cvsearch/internal/logger"
	mcpTransport "github.com/kailas-cloud/cvsearch/internal/transport/mcp"
	"github.com/kailas-cloud/cvsearch/internal/version"
)

func newMCPCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		Long: `Start a Model Context Protocol server over stdio, exposing the
search_records and get_record tools to AI assistants.

Logs go to stderr; stdout carries the JSON-RPC stream.

Example client configuration:
  {
    "mcpServers": {
      "cvsearch": {
        "command": "/path/to/cvsearch",
        "args": ["mcp", "--env", "local"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, env, logger, err := g.load(logpkg.WithStderr())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.Info("Starting MCP server",
				zap.String("version", version.Version),
				zap.String("env", env),
			)
			return mcpTransport.NewServer(a.search, a.records, version.Version, logger).Serve(cmd.Context())
		},
	}
}
