package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cqs-dev/cqs/internal/model"
)

func buildGraph(edges ...[2]string) *model.CallGraph {
	g := model.NewCallGraph()
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	return g
}

func TestReverseBFS_FindsAncestorsWithinDepth(t *testing.T) {
	// main -> a -> b -> target
	g := buildGraph([2]string{"main", "a"}, [2]string{"a", "b"}, [2]string{"b", "target"})

	depths := ReverseBFS(g, "target", 10)
	assert.Equal(t, 0, depths["target"])
	assert.Equal(t, 1, depths["b"])
	assert.Equal(t, 2, depths["a"])
	assert.Equal(t, 3, depths["main"])
}

func TestReverseBFS_RespectsMaxDepth(t *testing.T) {
	g := buildGraph([2]string{"main", "a"}, [2]string{"a", "b"}, [2]string{"b", "target"})

	depths := ReverseBFS(g, "target", 1)
	assert.Contains(t, depths, "target")
	assert.Contains(t, depths, "b")
	assert.NotContains(t, depths, "a")
	assert.NotContains(t, depths, "main")
}

func TestReverseBFSMulti_TakesMinDepthAcrossSources(t *testing.T) {
	// near -> shared; far1 -> far2 -> shared
	g := buildGraph([2]string{"near", "shared"}, [2]string{"far1", "far2"}, [2]string{"far2", "shared"})

	depths := ReverseBFSMulti(g, []string{"shared"}, 10)
	assert.Equal(t, 1, depths["near"])
	assert.Equal(t, 1, depths["far2"])
	assert.Equal(t, 2, depths["far1"])
}

func TestComputeRiskBatch_HighCallerCountNoTests_IsHighRisk(t *testing.T) {
	g := model.NewCallGraph()
	for _, caller := range []string{"c1", "c2", "c3", "c4", "c5", "c6"} {
		g.AddEdge(caller, "risky")
	}

	scores := ComputeRiskBatch([]string{"risky"}, g, map[string]struct{}{})
	got := scores[0]
	assert.Equal(t, 6, got.CallerCount)
	assert.Equal(t, 0, got.TestCount)
	assert.Equal(t, 0.0, got.Coverage)
	assert.Equal(t, RiskHigh, got.Level)
}

func TestComputeRiskBatch_CoveredFunction_IsLowRisk(t *testing.T) {
	g := buildGraph([2]string{"caller", "covered"}, [2]string{"TestCovered", "caller"})

	scores := ComputeRiskBatch([]string{"covered"}, g, map[string]struct{}{"TestCovered": {}})
	assert.Equal(t, 1, scores[0].CallerCount)
	assert.Equal(t, 1, scores[0].TestCount)
	assert.Equal(t, 1.0, scores[0].Coverage)
	assert.Equal(t, RiskLow, scores[0].Level)
}

func TestComputeRiskBatch_OrphanWithNoTests_IsMediumRisk(t *testing.T) {
	g := model.NewCallGraph()
	scores := ComputeRiskBatch([]string{"orphan"}, g, map[string]struct{}{})
	assert.Equal(t, 0, scores[0].CallerCount)
	assert.Equal(t, 0, scores[0].TestCount)
	assert.Equal(t, RiskMedium, scores[0].Level)
}

func TestFindHotspots_SortsByCallerCountDescending(t *testing.T) {
	g := buildGraph(
		[2]string{"a", "hot"}, [2]string{"b", "hot"}, [2]string{"c", "hot"},
		[2]string{"x", "warm"}, [2]string{"y", "warm"},
		[2]string{"p", "cold"},
	)

	hotspots := FindHotspots(g, 2)
	assert.Len(t, hotspots, 2)
	assert.Equal(t, "hot", hotspots[0].Name)
	assert.Equal(t, 3, hotspots[0].CallerCount)
	assert.Equal(t, "warm", hotspots[1].Name)
}

func TestFindHotspots_DedupesRepeatedCallerEdges(t *testing.T) {
	g := model.NewCallGraph()
	g.AddEdge("a", "dup")
	g.AddEdge("a", "dup")

	hotspots := FindHotspots(g, 10)
	assert.Equal(t, 1, hotspots[0].CallerCount)
}
