package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
)

func newCallersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callers <name>",
		Short: "List callers of a function or method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			callers, err := eng.Store.GetCallersWithContext(ctx, args[0])
			if err != nil {
				return err
			}
			out := cliutil.New(cmd.OutOrStdout())
			if len(callers) == 0 {
				out.Status("", fmt.Sprintf("no callers found for %q", args[0]))
				return nil
			}
			for _, c := range callers {
				out.Statusf("", "%s  (%s:%d)", c.CallerName, c.Origin, c.CallLine)
				if c.Snippet != "" {
					out.Status("", "   "+c.Snippet)
				}
			}
			return nil
		},
	}
	return cmd
}
