package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
)

func newCalleesCmd() *cobra.Command {
	var origin string

	cmd := &cobra.Command{
		Use:   "callees <name>",
		Short: "List functions called by a function or method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			callees, err := eng.Store.GetCalleesFull(ctx, args[0], origin)
			if err != nil {
				return err
			}
			out := cliutil.New(cmd.OutOrStdout())
			if len(callees) == 0 {
				out.Status("", fmt.Sprintf("no callees found for %q", args[0]))
				return nil
			}
			for _, c := range callees {
				out.Status("", c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Restrict to calls made from this source file")
	return cmd
}
