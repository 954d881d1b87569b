// Package graph implements pure-function BFS algorithms over the call and
// type graphs: reverse reachability, risk scoring, and
// hotspot ranking. None of it touches the store directly; callers load a
// model.CallGraph once and pass it in.
package graph

import (
	"sort"

	"github.com/cqs-dev/cqs/internal/model"
)

// ReverseBFS walks graph.Reverse starting at target, returning the BFS
// depth at which each ancestor name was first reached (0 for target
// itself), capped at maxDepth hops.
func ReverseBFS(g *model.CallGraph, target string, maxDepth int) map[string]int {
	return reverseBFSFrom(g, []string{target}, maxDepth)
}

// ReverseBFSMulti seeds the frontier from every target at once; each node
// records the minimum depth from any source, re-enqueueing whenever a
// shorter path to it is discovered.
func ReverseBFSMulti(g *model.CallGraph, targets []string, maxDepth int) map[string]int {
	return reverseBFSFrom(g, targets, maxDepth)
}

func reverseBFSFrom(g *model.CallGraph, targets []string, maxDepth int) map[string]int {
	depth := make(map[string]int, len(targets))
	type item struct {
		name string
		d    int
	}
	queue := make([]item, 0, len(targets))
	for _, t := range targets {
		if _, seen := depth[t]; seen {
			continue
		}
		depth[t] = 0
		queue = append(queue, item{t, 0})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.d >= maxDepth {
			continue
		}
		for _, parent := range g.Reverse[cur.name] {
			nd := cur.d + 1
			if existing, ok := depth[parent]; ok && existing <= nd {
				continue
			}
			depth[parent] = nd
			queue = append(queue, item{parent, nd})
		}
	}
	return depth
}

// RiskLevel classifies a RiskScore's severity.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskScore is the per-function output of ComputeRiskBatch.
type RiskScore struct {
	Name        string
	CallerCount int
	TestCount   int
	Coverage    float64
	Score       float64
	Level       RiskLevel
}

// defaultTestDepth bounds how far up the reverse call graph a test chunk
// may sit and still count as covering a function.
const defaultTestDepth = 5

// ComputeRiskBatch scores every name in names using its caller fan-in and
// how many testChunks reach it within defaultTestDepth hops in the reverse
// call graph. testChunks is the set of chunk names already classified as
// tests (store.FindTestChunks).
func ComputeRiskBatch(names []string, g *model.CallGraph, testChunks map[string]struct{}) []RiskScore {
	out := make([]RiskScore, 0, len(names))
	for _, name := range names {
		callerCount := len(dedupe(g.Reverse[name]))

		ancestors := ReverseBFS(g, name, defaultTestDepth)
		testCount := 0
		for ancestor := range ancestors {
			if _, isTest := testChunks[ancestor]; isTest {
				testCount++
			}
		}

		var coverage float64
		if callerCount == 0 {
			if testCount > 0 {
				coverage = 1.0
			}
		} else {
			coverage = float64(testCount) / float64(callerCount)
			if coverage > 1.0 {
				coverage = 1.0
			}
		}

		score := float64(callerCount) * (1 - coverage)

		var level RiskLevel
		switch {
		case callerCount == 0 && testCount == 0:
			level = RiskMedium
		case score >= 5:
			level = RiskHigh
		case score >= 2:
			level = RiskMedium
		default:
			level = RiskLow
		}

		out = append(out, RiskScore{
			Name:        name,
			CallerCount: callerCount,
			TestCount:   testCount,
			Coverage:    coverage,
			Score:       score,
			Level:       level,
		})
	}
	return out
}

// Hotspot is a single entry of FindHotspots' output.
type Hotspot struct {
	Name        string
	CallerCount int
}

// FindHotspots ranks names by deduplicated caller fan-in descending,
// returning at most topN entries. Ties break by name for determinism.
func FindHotspots(g *model.CallGraph, topN int) []Hotspot {
	hotspots := make([]Hotspot, 0, len(g.Reverse))
	for name, callers := range g.Reverse {
		hotspots = append(hotspots, Hotspot{Name: name, CallerCount: len(dedupe(callers))})
	}
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].CallerCount != hotspots[j].CallerCount {
			return hotspots[i].CallerCount > hotspots[j].CallerCount
		}
		return hotspots[i].Name < hotspots[j].Name
	})
	if topN >= 0 && len(hotspots) > topN {
		hotspots = hotspots[:topN]
	}
	return hotspots
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return names
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
