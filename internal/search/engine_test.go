package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqs-dev/cqs/internal/model"
	"github.com/cqs-dev/cqs/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "index.db"), store.Options{Dimensions: 4, ModelName: "test-model"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func chunk(id, origin, name string) *model.Chunk {
	return &model.Chunk{
		ID: id, Origin: origin, Language: "go", ChunkType: model.ChunkFunction,
		Name: name, Signature: "func " + name + "()", Content: "func " + name + "() {}",
		LineStart: 1, LineEnd: 3, ContentHash: "hash-" + id,
	}
}

func TestSearchFiltered_RanksByCosineSimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertChunksBatch(ctx, []store.ChunkEmbedding{
		{Chunk: chunk("a.go:1:aaaaaaaa", "a.go", "exactMatch"), Embedding: model.Embedding{1, 0, 0, 0}},
		{Chunk: chunk("b.go:1:bbbbbbbb", "b.go", "unrelated"), Embedding: model.Embedding{0, 1, 0, 0}},
	}))

	e := New(s, nil)
	results, err := e.SearchFiltered(ctx, model.Embedding{1, 0, 0, 0}, Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exactMatch", results[0].Chunk.Name)
	assert.InDelta(t, 1.0, results[0].Score, 0.0001)
}

func TestSearchFiltered_NameBoostFusesScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertChunksBatch(ctx, []store.ChunkEmbedding{
		{Chunk: chunk("a.go:1:aaaaaaaa", "a.go", "parseConfig"), Embedding: model.Embedding{0, 1, 0, 0}},
		{Chunk: chunk("b.go:1:bbbbbbbb", "b.go", "unrelatedThing"), Embedding: model.Embedding{1, 0, 0, 0}},
	}))

	e := New(s, nil)
	results, err := e.SearchFiltered(ctx, model.Embedding{1, 0, 0, 0}, Filter{
		NameBoost: 0.5, QueryText: "parseConfig",
	}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "parseConfig", results[0].Chunk.Name)
}

func TestSearchFiltered_PathPatternExcludesNonMatching(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertChunksBatch(ctx, []store.ChunkEmbedding{
		{Chunk: chunk("src/a.go:1:aaaaaaaa", "src/a.go", "fnA"), Embedding: model.Embedding{1, 0, 0, 0}},
		{Chunk: chunk("vendor/b.go:1:bbbbbbbb", "vendor/b.go", "fnB"), Embedding: model.Embedding{1, 0, 0, 0}},
	}))

	e := New(s, nil)
	results, err := e.SearchFiltered(ctx, model.Embedding{1, 0, 0, 0}, Filter{PathPattern: "src/**"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "src/a.go", results[0].Chunk.Origin)
}

func TestSearchFiltered_DedupesWindowedChunksByParent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	parent := chunk("a.go:1:aaaaaaaa", "a.go", "bigFunc")
	window1 := chunk("a.go:1:aaaaaaaa#0", "a.go", "bigFunc")
	window1.ParentID = parent.ID
	window2 := chunk("a.go:1:aaaaaaaa#1", "a.go", "bigFunc")
	window2.ParentID = parent.ID

	require.NoError(t, s.UpsertChunksBatch(ctx, []store.ChunkEmbedding{
		{Chunk: window1, Embedding: model.Embedding{1, 0, 0, 0}},
		{Chunk: window2, Embedding: model.Embedding{0.9, 0.1, 0, 0}},
	}))

	e := New(s, nil)
	results, err := e.SearchFiltered(ctx, model.Embedding{1, 0, 0, 0}, Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, window1.ID, results[0].Chunk.ID)
}

func TestSearchFiltered_ThresholdDropsLowScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertChunksBatch(ctx, []store.ChunkEmbedding{
		{Chunk: chunk("a.go:1:aaaaaaaa", "a.go", "orthogonal"), Embedding: model.Embedding{0, 1, 0, 0}},
	}))

	e := New(s, nil)
	results, err := e.SearchFiltered(ctx, model.Embedding{1, 0, 0, 0}, Filter{Threshold: 0.5}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchUnified_ReservesCodeSlots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertChunksBatch(ctx, []store.ChunkEmbedding{
		{Chunk: chunk("a.go:1:aaaaaaaa", "a.go", "fnA"), Embedding: model.Embedding{1, 0, 0, 0}},
	}))
	require.NoError(t, s.UpsertNote(ctx, &model.Note{ID: "n1", Text: "a great note", Embedding: model.Embedding{1, 0, 0, 0}}))

	e := New(s, nil)
	results, err := e.SearchUnified(ctx, model.Embedding{1, 0, 0, 0}, Filter{}, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestNameScore_ExactContainsAndOverlap(t *testing.T) {
	assert.Equal(t, 1.0, NameScore("Parse", "parse"))
	assert.Equal(t, 0.8, NameScore("parse", "parseConfigFile"))
	assert.Equal(t, 0.6, NameScore("parseConfigFileFully", "parse"))
	assert.Greater(t, NameScore("parse config", "configParser"), 0.0)
	assert.Equal(t, 0.0, NameScore("", "anything"))
}
