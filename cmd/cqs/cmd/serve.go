package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as an MCP server over stdio",
		Long: `Exposes search, gather, impact, callers, callees, related, scout,
onboard, placement, dead_code, and health as MCP tools for an AI
assistant. stdout is reserved exclusively for the MCP JSON-RPC
transport; diagnostics go to the log file (and to stderr with --debug).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, false)
			if err != nil {
				return fmt.Errorf("open engine: %w", err)
			}
			defer func() { _ = eng.Close() }()

			srv, err := mcpserver.NewServer(eng, slog.Default())
			if err != nil {
				return fmt.Errorf("create mcp server: %w", err)
			}
			return srv.Serve(ctx)
		},
	}
	return cmd
}
