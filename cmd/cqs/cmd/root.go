// Package cmd provides the CLI commands for cqs.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/logging"
	"github.com/cqs-dev/cqs/pkg/version"
)

var (
	rootPath     string
	debugLogging bool
	loggingStop  func()
)

// NewRootCmd creates the root command for the cqs CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cqs",
		Short: "Semantic code intelligence over an indexed codebase",
		Long: `cqs indexes a codebase into chunks, call graphs, and type graphs, then
answers questions about it with hybrid search (BM25 + embeddings + RRF
fusion), impact analysis, dead-code detection, and onboarding summaries.

Run 'cqs index' once in a project, then use 'cqs search', 'cqs gather',
'cqs impact' and friends, or 'cqs serve' to expose the same operations
as an MCP server for an AI assistant.`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if loggingStop != nil {
				loggingStop()
				loggingStop = nil
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("cqs version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&rootPath, "root", "", "Project root (defaults to the nearest directory containing .git, go.mod, package.json, Cargo.toml or .cqs, else the working directory)")
	cmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Enable debug logging to <root>/.cqs/cqs.log, mirrored to stderr")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCallersCmd())
	cmd.AddCommand(newCalleesCmd())
	cmd.AddCommand(newGatherCmd())
	cmd.AddCommand(newImpactCmd())
	cmd.AddCommand(newRelatedCmd())
	cmd.AddCommand(newScoutCmd())
	cmd.AddCommand(newOnboardCmd())
	cmd.AddCommand(newPlacementCmd())
	cmd.AddCommand(newDeadCmd())
	cmd.AddCommand(newDriftCmd())
	cmd.AddCommand(newSuggestCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newGateCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging wires slog for the whole command tree: it always logs to
// <root>/.cqs/cqs.log, at warn level by default; --debug switches to debug
// level and mirrors the log to stderr. Nothing is logged to stdout, so
// stdout stays clean for piped/MCP consumers.
func setupLogging(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "serve" || cmd.Name() == "batch" {
		// MCP and batch both require exclusive use of stdout for their
		// protocol; the logger below never writes to stdout.
	}
	root := resolveRoot()
	cfg := logging.DefaultConfig(root)
	cfg.WriteToStderr = debugLogging
	if !debugLogging {
		cfg.Level = "warn"
	} else {
		cfg.Level = "debug"
	}
	logger, stop, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	loggingStop = stop
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
