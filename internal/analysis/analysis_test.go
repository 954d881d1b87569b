package analysis

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/search"
	"github.com/cqs-dev/cqs/internal/store"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "index.db"), store.Options{Dimensions: 4, ModelName: "test-model"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	engine := search.New(s, nil)
	return New(s, engine)
}

func chunkAt(id, origin, name string, chunkType model.ChunkType, lineStart, lineEnd int) *model.Chunk {
	return &model.Chunk{
		ID: id, Origin: origin, Language: "go", ChunkType: chunkType,
		Name: name, Signature: "func " + name + "()", Content: "func " + name + "() {}",
		LineStart: lineStart, LineEnd: lineEnd, ContentHash: "hash-" + id,
	}
}

func TestGather_ExpandsCallGraphFromSeeds(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	seed := chunkAt("a.go:1:aaaaaaaa", "a.go", "handleRequest", model.ChunkFunction, 1, 5)
	neighbor := chunkAt("a.go:10:bbbbbbbb", "a.go", "validateInput", model.ChunkFunction, 10, 15)
	require.NoError(t, a.Store.UpsertChunksBatch(ctx, []store.ChunkEmbedding{
		{Chunk: seed, Embedding: model.Embedding{1, 0, 0, 0}},
		{Chunk: neighbor, Embedding: model.Embedding{0, 1, 0, 0}},
	}))
	require.NoError(t, a.Store.UpsertCallsForOrigin(ctx, "a.go", []model.CallSite{
		{CallerName: "handleRequest", CalleeName: "validateInput", CallLine: 2, Origin: "a.go"},
	}))

	opts := DefaultGatherOptions()
	opts.SeedThreshold = 0
	result, err := a.Gather(ctx, model.Embedding{1, 0, 0, 0}, "handleRequest", opts)
	require.NoError(t, err)
	require.NotNil(t, result)

	names := map[string]bool{}
	for _, c := range result.Chunks {
		names[c.Chunk.Name] = true
	}
	assert.True(t, names["handleRequest"])
	assert.True(t, names["validateInput"])
}

func TestAnalyzeImpact_FindsDirectCallersAndTests(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	target := chunkAt("a.go:1:aaaaaaaa", "a.go", "core", model.ChunkFunction, 1, 5)
	caller := chunkAt("a.go:10:bbbbbbbb", "a.go", "caller", model.ChunkFunction, 10, 15)
	test := chunkAt("a_test.go:1:cccccccc", "a_test.go", "TestCaller", model.ChunkFunction, 1, 5)
	require.NoError(t, a.Store.UpsertChunksBatch(ctx, []store.ChunkEmbedding{
		{Chunk: target, Embedding: model.Embedding{1, 0, 0, 0}},
		{Chunk: caller, Embedding: model.Embedding{0, 1, 0, 0}},
		{Chunk: test, Embedding: model.Embedding{0, 0, 1, 0}},
	}))
	require.NoError(t, a.Store.UpsertCallsForOrigin(ctx, "a.go", []model.CallSite{
		{CallerName: "caller", CalleeName: "core", CallLine: 11, Origin: "a.go"},
	}))
	require.NoError(t, a.Store.UpsertCallsForOrigin(ctx, "a_test.go", []model.CallSite{
		{CallerName: "TestCaller", CalleeName: "caller", CallLine: 2, Origin: "a_test.go"},
	}))

	impact, err := a.AnalyzeImpact(ctx, "core", 1)
	require.NoError(t, err)
	require.Len(t, impact.Callers, 1)
	assert.Equal(t, "caller", impact.Callers[0].CallerName)
	require.Len(t, impact.Tests, 1)
	assert.Equal(t, "TestCaller", impact.Tests[0].TestName)
}

func TestMapHunksToFunctions_OverlapsLineRanges(t *testing.T) {
	chunks := map[string][]*model.Chunk{
		"a.go": {chunkAt("a.go:1:x", "a.go", "fnA", model.ChunkFunction, 10, 20)},
	}
	hunks := []DiffHunk{{Origin: "a.go", Start: 15, Count: 2}}
	mapped := MapHunksToFunctions(hunks, chunks)
	require.Len(t, mapped["a.go"], 1)
	assert.Equal(t, "fnA", mapped["a.go"][0].Name)
}

func TestMapHunksToFunctions_SkipsZeroCountHunks(t *testing.T) {
	chunks := map[string][]*model.Chunk{
		"a.go": {chunkAt("a.go:1:x", "a.go", "fnA", model.ChunkFunction, 10, 20)},
	}
	hunks := []DiffHunk{{Origin: "a.go", Start: 15, Count: 0}}
	mapped := MapHunksToFunctions(hunks, chunks)
	assert.Empty(t, mapped["a.go"])
}

func TestFindRelated_SharedCallersAndCallees(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	for _, c := range []*model.Chunk{
		chunkAt("a.go:1:a1", "a.go", "target", model.ChunkFunction, 1, 3),
		chunkAt("a.go:5:a2", "a.go", "sibling", model.ChunkFunction, 5, 7),
		chunkAt("a.go:10:a3", "a.go", "sharedCaller", model.ChunkFunction, 10, 12),
	} {
		require.NoError(t, a.Store.UpsertChunksBatch(ctx, []store.ChunkEmbedding{{Chunk: c, Embedding: model.Embedding{1, 0, 0, 0}}}))
	}
	require.NoError(t, a.Store.UpsertCallsForOrigin(ctx, "a.go", []model.CallSite{
		{CallerName: "sharedCaller", CalleeName: "target", CallLine: 11, Origin: "a.go"},
		{CallerName: "sharedCaller", CalleeName: "sibling", CallLine: 11, Origin: "a.go"},
	}))

	related, err := a.FindRelated(ctx, "target", 10)
	require.NoError(t, err)
	require.Len(t, related.SharedCallers, 1)
	assert.Equal(t, "sibling", related.SharedCallers[0].Name)
}

func TestCompareDrift_FlagsChangedEmbeddings(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	before, err := store.Open(filepath.Join(dirA, "b.db"), store.Options{Dimensions: 4, ModelName: "m"})
	require.NoError(t, err)
	defer before.Close()
	after, err := store.Open(filepath.Join(dirB, "a.db"), store.Options{Dimensions: 4, ModelName: "m"})
	require.NoError(t, err)
	defer after.Close()

	ctx := context.Background()
	c := chunkAt("a.go:1:aaaaaaaa", "a.go", "fn", model.ChunkFunction, 1, 3)
	require.NoError(t, before.UpsertChunksBatch(ctx, []store.ChunkEmbedding{{Chunk: c, Embedding: model.Embedding{1, 0, 0, 0}}}))
	require.NoError(t, after.UpsertChunksBatch(ctx, []store.ChunkEmbedding{{Chunk: c, Embedding: model.Embedding{0, 1, 0, 0}}}))

	drift, err := CompareDrift(ctx, before, after, 0.95)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, "fn", drift[0].Name)
	assert.InDelta(t, 1.0, drift[0].Drift, 0.0001)
}

func TestHealth_DegradesGracefullyWithEmptyStore(t *testing.T) {
	a := newTestAnalyzer(t)
	report := a.Health(context.Background(), 5, nil)
	assert.Equal(t, 0, report.ChunkCount)
	assert.Empty(t, report.Warnings)
}

func TestPathMentionMatches_RequiresComponentBoundary(t *testing.T) {
	assert.True(t, pathMentionMatches("auth.go", "src/auth.go"))
	assert.True(t, pathMentionMatches("src/auth.go", "src/auth.go"))
	assert.False(t, pathMentionMatches("auth.go", "src/oauth.go"))
}

func TestGapSplit_SplitsOnLargeRelativeGap(t *testing.T) {
	scores := []float64{0.9, 0.85, 0.2, 0.15}
	split := gapSplit(scores)
	assert.Equal(t, 0.85, split)
}

func TestExtractLocalPatterns_DetectsSnakeCaseAndErrorsNew(t *testing.T) {
	chunks := []*model.Chunk{
		{Name: "parse_config", Content: "import os\nerr := errors.New(\"bad\")"},
		{Name: "load_file", Content: "errors.New(\"missing\")"},
	}
	lp := extractLocalPatterns(chunks)
	assert.Equal(t, "snake_case", lp.NamingConvention)
	assert.Equal(t, "errors.New", lp.ErrorHandlingStyle)
}
