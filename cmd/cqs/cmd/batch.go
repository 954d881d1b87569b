package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/batch"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the stdio batch protocol: one command per line, one JSON object per reply",
		Long: `Reads commands from stdin, one shell-tokenized invocation per line
(search, callers, callees, explain, similar, gather, impact, test-map,
trace, dead, related, context, stats, help), and writes one JSON object
per line to stdout. "quit" or "exit" ends the session. Blank lines and
lines starting with '#' are ignored.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, false)
			if err != nil {
				return fmt.Errorf("open engine: %w", err)
			}
			defer func() { _ = eng.Close() }()

			return batch.Run(ctx, eng, os.Stdin, cmd.OutOrStdout())
		},
	}
	return cmd
}
