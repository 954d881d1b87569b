package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cqs-dev/cqs/internal/graph"
	"github.com/cqs-dev/cqs/internal/model"
)

func makeSummary(high, medium, low int) RiskSummary {
	s := RiskSummary{High: high, Medium: medium, Low: low}
	switch {
	case high > 0:
		s.Overall = graph.RiskHigh
	case medium > 0:
		s.Overall = graph.RiskMedium
	default:
		s.Overall = graph.RiskLow
	}
	return s
}

func TestEvaluateGate_HighPassesWhenNoHighRisk(t *testing.T) {
	risk := makeSummary(0, 3, 5)
	gate := EvaluateGate(risk, GateHigh)
	assert.True(t, gate.Passed)
}

func TestEvaluateGate_HighFailsOnHighRisk(t *testing.T) {
	risk := makeSummary(2, 1, 0)
	gate := EvaluateGate(risk, GateHigh)
	assert.False(t, gate.Passed)
	assert.Len(t, gate.Reasons, 1)
}

func TestEvaluateGate_MediumFailsOnMedium(t *testing.T) {
	risk := makeSummary(0, 1, 5)
	gate := EvaluateGate(risk, GateMedium)
	assert.False(t, gate.Passed)
}

func TestEvaluateGate_MediumReportsBothHighAndMedium(t *testing.T) {
	risk := makeSummary(2, 3, 1)
	gate := EvaluateGate(risk, GateMedium)
	assert.False(t, gate.Passed)
	assert.Len(t, gate.Reasons, 2)
}

func TestEvaluateGate_OffAlwaysPasses(t *testing.T) {
	risk := makeSummary(10, 5, 0)
	gate := EvaluateGate(risk, GateOff)
	assert.True(t, gate.Passed)
}

func TestEvaluateGate_AllLowPassesAnyThreshold(t *testing.T) {
	risk := makeSummary(0, 0, 10)
	assert.True(t, EvaluateGate(risk, GateHigh).Passed)
	assert.True(t, EvaluateGate(risk, GateMedium).Passed)
	assert.True(t, EvaluateGate(risk, GateOff).Passed)
}

func TestSummarizeRisk_OverallFollowsWorstLevel(t *testing.T) {
	scores := []graph.RiskScore{
		{Name: "a", Level: graph.RiskLow},
		{Name: "b", Level: graph.RiskMedium},
	}
	s := summarizeRisk(scores)
	assert.Equal(t, 1, s.Medium)
	assert.Equal(t, 1, s.Low)
	assert.Equal(t, graph.RiskMedium, s.Overall)
}

func TestOriginEndsWithComponent(t *testing.T) {
	assert.True(t, originEndsWithComponent("src/ci.rs", "src/ci.rs"))
	assert.True(t, originEndsWithComponent("internal/analysis/ci.rs", "analysis/ci.rs"))
	assert.False(t, originEndsWithComponent("internal/analysis/foobar.rs", "bar.rs"))
	assert.False(t, originEndsWithComponent("ci.rs", "src/ci.rs"))
}

func TestFilterDeadInDiff(t *testing.T) {
	chunks := []*model.Chunk{
		{Name: "unused", Origin: "internal/analysis/gate.go", LineStart: 10},
		{Name: "other", Origin: "internal/store/store.go", LineStart: 5},
	}
	diffFiles := map[string]struct{}{"internal/analysis/gate.go": {}}
	out := filterDeadInDiff(chunks, "high", diffFiles)
	assert.Len(t, out, 1)
	assert.Equal(t, "unused", out[0].Name)
	assert.Equal(t, "high", out[0].Confidence)
}
