package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cqs-dev/cqs/internal/analysis"
	"github.com/cqs-dev/cqs/internal/cliutil"
	"github.com/cqs-dev/cqs/internal/model"
)

var hunkHeaderRe = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

func newGateCmd() *cobra.Command {
	var diffPath string
	var threshold string
	var format string

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Evaluate a unified diff against risk thresholds for CI",
		Long: `Reads a unified diff (from --diff or stdin), maps its hunks onto indexed
functions, scores their blast radius and test coverage, scans for dead
code newly touched by the diff, and exits non-zero when risk meets or
exceeds --threshold.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGate(cmd, diffPath, threshold, format)
		},
	}

	cmd.Flags().StringVar(&diffPath, "diff", "", "Path to a unified diff file (default: stdin)")
	cmd.Flags().StringVar(&threshold, "threshold", "high", "Gate threshold: high, medium, off")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runGate(cmd *cobra.Command, diffPath, threshold, format string) error {
	ctx := cmd.Context()
	eng, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var r io.Reader = cmd.InOrStdin()
	if diffPath != "" {
		f, err := os.Open(diffPath)
		if err != nil {
			return fmt.Errorf("open diff: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	hunks, err := parseUnifiedDiff(r)
	if err != nil {
		return fmt.Errorf("parse diff: %w", err)
	}

	gt := analysis.GateThreshold(threshold)
	if gt != analysis.GateHigh && gt != analysis.GateMedium && gt != analysis.GateOff {
		return fmt.Errorf("invalid --threshold %q", threshold)
	}

	chunksByOrigin := map[string][]*model.Chunk{}
	for origin := range hunksByOrigin(hunks) {
		chunks, err := eng.Store.GetChunksByOrigin(ctx, origin)
		if err != nil {
			continue
		}
		chunksByOrigin[origin] = chunks
	}

	report, err := eng.Analyzer.RunCIAnalysis(ctx, hunks, chunksByOrigin, gt)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		renderGateReport(cmd, report)
	}

	if !report.Gate.Passed {
		cmd.SilenceErrors = true
		return fmt.Errorf("gate failed: %s", strings.Join(report.Gate.Reasons, "; "))
	}
	return nil
}

func hunksByOrigin(hunks []analysis.DiffHunk) map[string]struct{} {
	out := map[string]struct{}{}
	for _, h := range hunks {
		out[h.Origin] = struct{}{}
	}
	return out
}

func renderGateReport(cmd *cobra.Command, report *analysis.CiReport) {
	out := cliutil.New(cmd.OutOrStdout())
	out.Statusf("", "%d changed function(s), risk: %d high, %d medium, %d low",
		len(report.DiffImpact.Targets), report.RiskSummary.High, report.RiskSummary.Medium, report.RiskSummary.Low)
	for _, d := range report.DeadInDiff {
		out.Warningf("%s:%d %s appears dead (%s confidence)", d.Origin, d.LineStart, d.Name, d.Confidence)
	}
	for _, w := range report.Warnings {
		out.Warning(w)
	}
	if report.Gate.Passed {
		out.Success("gate passed")
	} else {
		for _, reason := range report.Gate.Reasons {
			out.Error(reason)
		}
		out.Error("gate failed")
	}
}

// parseUnifiedDiff extracts DiffHunk{Origin,Start,Count} entries from a
// unified diff: one hunk per "@@ -old +new @@" header, attributed to the
// nearest preceding "+++ b/<path>" file header. No pack dependency parses
// unified-diff hunk headers, so this stays on stdlib regexp/bufio.
func parseUnifiedDiff(r io.Reader) ([]analysis.DiffHunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var hunks []analysis.DiffHunk
	currentFile := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "+++ "):
			path := strings.TrimPrefix(line, "+++ ")
			path = strings.TrimPrefix(path, "b/")
			if path == "/dev/null" {
				currentFile = ""
			} else {
				currentFile = path
			}
		case strings.HasPrefix(line, "@@ "):
			m := hunkHeaderRe.FindStringSubmatch(line)
			if m == nil || currentFile == "" {
				continue
			}
			start, _ := strconv.Atoi(m[1])
			count := 1
			if m[2] != "" {
				count, _ = strconv.Atoi(m[2])
			}
			hunks = append(hunks, analysis.DiffHunk{Origin: currentFile, Start: start, Count: count})
		}
	}
	return hunks, scanner.Err()
}
