package analysis

import (
	"context"
	"log/slog"

	"github.com/cqs-dev/cqs/internal/graph"
	"github.com/cqs-dev/cqs/internal/vectorindex"
)

// HealthReport aggregates read-only health signals. Every field has a
// usable zero value so a failed sub-query degrades gracefully rather than
// aborting the whole report.
type HealthReport struct {
	ChunkCount           int
	OriginCount          int
	NoteCount            int
	DeadCodeConfident     int
	DeadCodePossiblyPublic int
	TopHotspots           []graph.Hotspot
	UntestedHotspots      []graph.RiskScore
	VectorIndexSize       int
	Warnings              []string
}

// untestedHotspotMinCallers is the minimum caller fan-in for a function
// to count as an untested hotspot.
const untestedHotspotMinCallers = 5

// Health produces an aggregate report over the store, degrading each
// sub-query independently on failure.
func (a *Analyzer) Health(ctx context.Context, topN int, index vectorindex.VectorIndex) *HealthReport {
	report := &HealthReport{}

	if n, err := a.Store.ChunkCount(ctx); err != nil {
		report.Warnings = append(report.Warnings, "chunk count: "+err.Error())
		slog.Warn("health_subquery_failed", slog.String("query", "chunk_count"), slog.Any("err", err))
	} else {
		report.ChunkCount = n
	}

	if n, err := a.Store.OriginCount(ctx); err != nil {
		report.Warnings = append(report.Warnings, "origin count: "+err.Error())
	} else {
		report.OriginCount = n
	}

	if n, err := a.Store.NoteCount(ctx); err != nil {
		report.Warnings = append(report.Warnings, "note count: "+err.Error())
	} else {
		report.NoteCount = n
	}

	if confident, possiblyPublic, err := a.Store.FindDeadCode(ctx, true); err != nil {
		report.Warnings = append(report.Warnings, "dead code: "+err.Error())
	} else {
		report.DeadCodeConfident = len(confident)
		report.DeadCodePossiblyPublic = len(possiblyPublic)
	}

	g, gErr := a.Store.GetCallGraph(ctx)
	if gErr != nil {
		report.Warnings = append(report.Warnings, "call graph: "+gErr.Error())
	} else {
		report.TopHotspots = graph.FindHotspots(g, topN)

		testChunks, tErr := a.Store.FindTestChunks(ctx)
		if tErr != nil {
			report.Warnings = append(report.Warnings, "test chunks: "+tErr.Error())
		} else {
			testNames := make(map[string]struct{}, len(testChunks))
			for _, t := range testChunks {
				testNames[t.Name] = struct{}{}
			}
			names := make([]string, 0, len(g.Reverse))
			for name := range g.Reverse {
				names = append(names, name)
			}
			risks := graph.ComputeRiskBatch(names, g, testNames)
			for _, r := range risks {
				if r.CallerCount >= untestedHotspotMinCallers && r.TestCount == 0 && r.Level == graph.RiskHigh {
					report.UntestedHotspots = append(report.UntestedHotspots, r)
				}
			}
		}
	}

	if index != nil {
		report.VectorIndexSize = index.Len()
	}

	return report
}
