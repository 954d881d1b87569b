package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqs-dev/cqs/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "index.db"), Options{Dimensions: 4, ModelName: "test-model", EngineVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeChunk(id, origin, name string, lineStart, lineEnd int) *model.Chunk {
	return &model.Chunk{
		ID: id, Origin: origin, Language: "go", ChunkType: model.ChunkFunction,
		Name: name, Signature: "func " + name + "()", Content: "func " + name + "() {}",
		LineStart: lineStart, LineEnd: lineEnd, ContentHash: "deadbeef",
	}
}

func TestOpen_InitializesSchemaAndMetadata(t *testing.T) {
	s := newTestStore(t)
	v, ok := s.GetMetadata("schema_version")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 4, s.Dimensions())
	assert.Equal(t, "test-model", s.ModelName())
}

func TestOpen_SchemaVersionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	s1, err := Open(path, Options{Dimensions: 4, ModelName: "m"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path, Options{Dimensions: 4, ModelName: "m"})
	require.NoError(t, err)
	defer s2.Close()
	v, _ := s2.GetMetadata("schema_version")
	assert.Equal(t, "1", v)
}

func TestOpen_ModelMismatchRefused(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	s1, err := Open(path, Options{Dimensions: 4, ModelName: "model-a"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	_, err = Open(path, Options{Dimensions: 4, ModelName: "model-b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_103_MODEL_MISMATCH")
}

func TestUpsertChunksBatch_ThenFetch_FieldsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := makeChunk("f.go:1:aaaaaaaa", "f.go", "doThing", 1, 5)
	emb := model.Embedding{1, 0, 0, 0}

	require.NoError(t, s.UpsertChunksBatch(ctx, []ChunkEmbedding{{Chunk: c, Embedding: emb}}))

	got, ok, err := s.GetChunkByID(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.Origin, got.Origin)
	assert.Equal(t, c.LineStart, got.LineStart)
	assert.Equal(t, c.LineEnd, got.LineEnd)

	cands, err := s.ScanCandidatesByIDs(ctx, []string{c.ID})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, emb, cands[0].Embedding)
}

func TestUpsertChunksBatch_Overwrite_SameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := makeChunk("f.go:1:aaaaaaaa", "f.go", "doThing", 1, 5)
	require.NoError(t, s.UpsertChunksBatch(ctx, []ChunkEmbedding{{Chunk: c, Embedding: model.Embedding{1, 0, 0, 0}}}))

	c2 := makeChunk("f.go:1:aaaaaaaa", "f.go", "doThingRenamed", 1, 5)
	require.NoError(t, s.UpsertChunksBatch(ctx, []ChunkEmbedding{{Chunk: c2, Embedding: model.Embedding{0, 1, 0, 0}}}))

	got, ok, err := s.GetChunkByID(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doThingRenamed", got.Name)

	n, err := s.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPruneMissing_RemovesStaleOrigins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := makeChunk("a.go:1:aaaaaaaa", "a.go", "fnA", 1, 2)
	b := makeChunk("b.go:1:bbbbbbbb", "b.go", "fnB", 1, 2)
	require.NoError(t, s.UpsertChunksBatch(ctx, []ChunkEmbedding{
		{Chunk: a, Embedding: model.Embedding{1, 0, 0, 0}},
		{Chunk: b, Embedding: model.Embedding{0, 1, 0, 0}},
	}))

	n, err := s.PruneMissing(ctx, map[string]struct{}{"a.go": {}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := s.GetChunkByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.GetChunkByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpsertCallsForOrigin_CascadeOnChunkDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	caller := makeChunk("a.go:1:aaaaaaaa", "a.go", "caller", 1, 5)
	require.NoError(t, s.UpsertChunksBatch(ctx, []ChunkEmbedding{{Chunk: caller, Embedding: model.Embedding{1, 0, 0, 0}}}))
	require.NoError(t, s.UpsertCallsForOrigin(ctx, "a.go", []model.CallSite{
		{CallerName: "caller", CalleeName: "callee", CallLine: 2, Origin: "a.go"},
	}))

	graph, err := s.GetCallGraph(ctx)
	require.NoError(t, err)
	assert.Contains(t, graph.Forward["caller"], "callee")

	_, err = s.PruneMissing(ctx, map[string]struct{}{})
	require.NoError(t, err)

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM calls`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestNeedsReindex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	need, err := s.NeedsReindex(ctx, "missing.go", time.Now())
	require.NoError(t, err)
	assert.True(t, need)

	c := makeChunk("a.go:1:aaaaaaaa", "a.go", "fnA", 1, 2)
	c.SourceMtime = 1000
	require.NoError(t, s.UpsertChunksBatch(ctx, []ChunkEmbedding{{Chunk: c, Embedding: model.Embedding{1, 0, 0, 0}}}))

	need, err = s.NeedsReindex(ctx, "a.go", time.Unix(1000, 0))
	require.NoError(t, err)
	assert.False(t, need)

	need, err = s.NeedsReindex(ctx, "a.go", time.Unix(2000, 0))
	require.NoError(t, err)
	assert.True(t, need)
}

func TestFindDeadCode_PartitionsByVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	priv := makeChunk("a.go:1:aaaaaaaa", "a.go", "helper", 1, 2)
	pub := makeChunk("a.go:3:bbbbbbbb", "a.go", "Exported", 3, 4)
	require.NoError(t, s.UpsertChunksBatch(ctx, []ChunkEmbedding{
		{Chunk: priv, Embedding: model.Embedding{1, 0, 0, 0}},
		{Chunk: pub, Embedding: model.Embedding{0, 1, 0, 0}},
	}))

	confident, possiblyPublic, err := s.FindDeadCode(ctx, true)
	require.NoError(t, err)
	require.Len(t, confident, 1)
	assert.Equal(t, "helper", confident[0].Name)
	require.Len(t, possiblyPublic, 1)
	assert.Equal(t, "Exported", possiblyPublic[0].Name)
}

func TestFTSSearch_FindsByNormalizedTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := makeChunk("a.go:1:aaaaaaaa", "a.go", "parseConfigFile", 1, 2)
	require.NoError(t, s.UpsertChunksBatch(ctx, []ChunkEmbedding{{Chunk: c, Embedding: model.Embedding{1, 0, 0, 0}}}))

	hits, err := s.SearchChunksFTS(ctx, "parse config file", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, c.ID, hits[0].ChunkID)
}

func TestGetEmbeddingsByHashes_SkipsReembedding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := makeChunk("a.go:1:aaaaaaaa", "a.go", "fnA", 1, 2)
	c.ContentHash = "sharedhash"
	require.NoError(t, s.UpsertChunksBatch(ctx, []ChunkEmbedding{{Chunk: c, Embedding: model.Embedding{1, 0, 0, 0}}}))

	byHash, err := s.GetEmbeddingsByHashes(ctx, []string{"sharedhash", "missing"})
	require.NoError(t, err)
	require.Contains(t, byHash, "sharedhash")
	assert.Equal(t, model.Embedding{1, 0, 0, 0}, byHash["sharedhash"])
}
