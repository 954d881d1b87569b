package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/cqs-dev/cqs/internal/graph"
	"github.com/cqs-dev/cqs/internal/model"
)

// GateThreshold controls when the CI gate fails.
type GateThreshold string

const (
	GateHigh   GateThreshold = "high"
	GateMedium GateThreshold = "medium"
	GateOff    GateThreshold = "off"
)

// RiskSummary buckets a set of risk scores by level.
type RiskSummary struct {
	High    int
	Medium  int
	Low     int
	Overall graph.RiskLevel
}

func summarizeRisk(scores []graph.RiskScore) RiskSummary {
	var s RiskSummary
	for _, r := range scores {
		switch r.Level {
		case graph.RiskHigh:
			s.High++
		case graph.RiskMedium:
			s.Medium++
		default:
			s.Low++
		}
	}
	switch {
	case s.High > 0:
		s.Overall = graph.RiskHigh
	case s.Medium > 0:
		s.Overall = graph.RiskMedium
	default:
		s.Overall = graph.RiskLow
	}
	return s
}

// GateResult is the outcome of evaluating a threshold against a
// RiskSummary. Evaluation is side-effect-free.
type GateResult struct {
	Threshold GateThreshold
	Passed    bool
	Reasons   []string
}

// EvaluateGate reports whether risk passes threshold: High fails only on High-risk functions; Medium
// fails on High or Medium; Off always passes.
func EvaluateGate(risk RiskSummary, threshold GateThreshold) GateResult {
	var reasons []string
	switch threshold {
	case GateHigh:
		if risk.High > 0 {
			reasons = append(reasons, fmt.Sprintf("%d high-risk function(s) detected", risk.High))
		}
	case GateMedium:
		if risk.High > 0 {
			reasons = append(reasons, fmt.Sprintf("%d high-risk function(s)", risk.High))
		}
		if risk.Medium > 0 {
			reasons = append(reasons, fmt.Sprintf("%d medium-risk function(s)", risk.Medium))
		}
	case GateOff:
		// always passes
	}
	return GateResult{Threshold: threshold, Passed: len(reasons) == 0, Reasons: reasons}
}

// DeadInDiff is a dead-code finding restricted to files touched by a diff.
type DeadInDiff struct {
	Name        string
	Origin      string
	LineStart   int
	Confidence  string // "high" or "medium" (possibly-public)
}

// CiReport is the complete CI-gate analysis for a diff: risk review plus
// a dead-code scan restricted to diff files plus gate evaluation.
type CiReport struct {
	DiffImpact *DiffImpactResult
	RiskScores []graph.RiskScore
	RiskSummary RiskSummary
	DeadInDiff []DeadInDiff
	Gate       GateResult
	Warnings   []string
}

// RunCIAnalysis composes diff-impact analysis, risk scoring of every
// changed function, dead-code detection filtered to diff-touched files,
// and gate evaluation at threshold. It never fails on a degraded
// sub-query; failures accumulate in Warnings.
func (a *Analyzer) RunCIAnalysis(ctx context.Context, hunks []DiffHunk, chunksByOrigin map[string][]*model.Chunk, threshold GateThreshold) (*CiReport, error) {
	diffImpact, err := a.AnalyzeDiffImpact(ctx, hunks, chunksByOrigin)
	if err != nil {
		return nil, err
	}

	report := &CiReport{DiffImpact: diffImpact}

	if len(diffImpact.Targets) == 0 {
		report.Gate = EvaluateGate(RiskSummary{Overall: graph.RiskLow}, threshold)
		return report, nil
	}

	g, err := a.Store.GetCallGraph(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, "risk scoring: "+err.Error())
	} else {
		testChunks, terr := a.Store.FindTestChunks(ctx)
		testNames := map[string]struct{}{}
		if terr == nil {
			for _, t := range testChunks {
				testNames[t.Name] = struct{}{}
			}
		} else {
			report.Warnings = append(report.Warnings, "test chunks: "+terr.Error())
		}
		report.RiskScores = graph.ComputeRiskBatch(diffImpact.Targets, g, testNames)
	}
	report.RiskSummary = summarizeRisk(report.RiskScores)

	diffFiles := make(map[string]struct{}, len(hunks))
	for _, h := range hunks {
		diffFiles[strings.ReplaceAll(h.Origin, "\\", "/")] = struct{}{}
	}

	confident, possiblyPublic, derr := a.Store.FindDeadCode(ctx, true)
	if derr != nil {
		report.Warnings = append(report.Warnings, "dead code scan: "+derr.Error())
	} else {
		report.DeadInDiff = filterDeadInDiff(confident, "high", diffFiles)
		report.DeadInDiff = append(report.DeadInDiff, filterDeadInDiff(possiblyPublic, "medium", diffFiles)...)
	}

	report.Gate = EvaluateGate(report.RiskSummary, threshold)
	return report, nil
}

// filterDeadInDiff keeps dead chunks whose origin ends with (component-wise,
// not substring) one of the diff's touched files: "foobar.rs" must not
// match "bar.rs".
func filterDeadInDiff(chunks []*model.Chunk, confidence string, diffFiles map[string]struct{}) []DeadInDiff {
	var out []DeadInDiff
	for _, c := range chunks {
		for f := range diffFiles {
			if originEndsWithComponent(c.Origin, f) {
				out = append(out, DeadInDiff{
					Name:       c.Name,
					Origin:     c.Origin,
					LineStart:  c.LineStart,
					Confidence: confidence,
				})
				break
			}
		}
	}
	return out
}

func originEndsWithComponent(origin, suffix string) bool {
	if origin == suffix {
		return true
	}
	if !strings.HasSuffix(origin, suffix) {
		return false
	}
	// component-boundary check: the character before the suffix must be '/'
	// so "foobar.rs" does not match diff file "bar.rs".
	return origin[len(origin)-len(suffix)-1] == '/'
}
