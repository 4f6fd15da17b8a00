package main

import (
	"fmt"

	"github.com/nvandessel/spikerecon/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve saved analysis runs to MCP clients over stdio",
		Long: `Start an MCP (Model Context Protocol) server on stdin/stdout.

Tools:
  spikerecon_runs     list saved runs with per-engine summaries
  spikerecon_epochs   show one engine's epoch model
  spikerecon_compare  compare two replica engines of a run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "spikerecon",
				Version:   version,
				Root:      s.root,
				StorePath: s.cfg.StorePath(s.root),
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}

			s.logger.Debug("mcp server listening on stdio")
			return server.Run(cmd.Context())
		},
	}
}
