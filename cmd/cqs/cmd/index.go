package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/cliutil"
	"github.com/cqs-dev/cqs/internal/ingest"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the project for searching",
		Long: `Scan the project, parse every supported source file into chunks, call
sites, and type edges, synthesize natural-language descriptions, embed
them, and persist everything to the project's .cqs store.

Files whose modification time has not advanced since they were last
indexed are skipped unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, force, quiet)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reindex every file even if unchanged")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress bar")

	return cmd
}

func runIndex(cmd *cobra.Command, force, quiet bool) error {
	ctx := cmd.Context()
	eng, err := openEngine(ctx, true)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer func() { _ = eng.Close() }()

	out := cliutil.New(cmd.OutOrStdout())

	var bar *progressbar.ProgressBar
	var progress func(done, total int, path string)
	if !quiet {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("indexing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		progress = func(done, total int, _ string) {
			_ = bar.Set64(int64(done))
			if bar.GetMax() != total {
				bar.ChangeMax(total)
			}
		}
	}

	result, err := eng.Ingest.IndexProject(ctx, eng.Root, ingest.Options{Force: force, Progress: progress})
	if err != nil {
		return fmt.Errorf("index project: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	out.Successf("indexed %d file(s), %d chunk(s) (%d embedded, %d reused), %d skipped in %s",
		result.FilesIndexed, result.ChunksIndexed, result.EmbeddedCount, result.ReusedCount,
		result.FilesSkipped, result.Duration.Round(1e6))
	for _, w := range result.Warnings {
		out.Warning(w)
	}
	return nil
}
