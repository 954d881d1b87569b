package suggest

import (
	"context"
	"os"
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

func chunkAt(id, origin, name string) *model.Chunk {
	return &model.Chunk{
		ID: id, Origin: origin, Language: "go", ChunkType: model.ChunkFunction,
		Name: name, Signature: "func " + name + "()", Content: "func " + name + "() {}",
		LineStart: 1, LineEnd: 3, ContentHash: "hash-" + id,
	}
}

func TestSuggest_EmptyStoreProducesNoSuggestions(t *testing.T) {
	s := newTestStore(t)
	out, err := Suggest(context.Background(), s, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestClassifyMention_File(t *testing.T) {
	assert.Equal(t, mentionFile, classifyMention("src/foo.go"))
	assert.Equal(t, mentionFile, classifyMention("go.mod"))
	assert.Equal(t, mentionFile, classifyMention("path/to/file"))
}

func TestClassifyMention_Symbol(t *testing.T) {
	assert.Equal(t, mentionSymbol, classifyMention("search_filtered"))
	assert.Equal(t, mentionSymbol, classifyMention("Store::Open"))
	assert.Equal(t, mentionSymbol, classifyMention("CallGraph"))
}

func TestClassifyMention_Concept(t *testing.T) {
	assert.Equal(t, mentionConcept, classifyMention("error handling"))
	assert.Equal(t, mentionConcept, classifyMention("indexing"))
}

func TestIsPascalCase(t *testing.T) {
	assert.True(t, isPascalCase("CallGraph"))
	assert.True(t, isPascalCase("Store"))
	assert.False(t, isPascalCase("store"))
	assert.False(t, isPascalCase("ALLCAPS"))
	assert.False(t, isPascalCase("A"))
}

func TestDetectDeadClusters_FlagsFileWithFiveOrMoreDeadFunctions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var embs []store.ChunkEmbedding
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i, n := range names {
		c := chunkAt("orphans.go:"+n, "orphans.go", n)
		c.LineStart = (i + 1) * 10
		c.LineEnd = c.LineStart + 5
		embs = append(embs, store.ChunkEmbedding{Chunk: c, Embedding: model.Embedding{1, 0, 0, 0}})
	}
	require.NoError(t, s.UpsertChunksBatch(ctx, embs))

	out, err := detectDeadClusters(ctx, s, "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "dead_code_cluster", out[0].Reason)
	assert.Contains(t, out[0].Text, "orphans.go")
}

func TestDetectStaleMentions_FlagsMissingFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root := t.TempDir()

	note := &model.Note{ID: "note:1", Text: "see src/nonexistent.go", Mentions: []string{"src/nonexistent.go"}}
	require.NoError(t, s.UpsertNote(ctx, note))

	out, err := detectStaleMentions(ctx, s, root)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "stale_mention", out[0].Reason)
	assert.Contains(t, out[0].Mentions, "src/nonexistent.go")
}

func TestDetectStaleMentions_FilePresentOnDiskIsNotStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "present.go"), []byte("package p"), 0o644))

	note := &model.Note{ID: "note:1", Text: "see present.go", Mentions: []string{"present.go"}}
	require.NoError(t, s.UpsertNote(ctx, note))

	out, err := detectStaleMentions(ctx, s, root)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDetectStaleMentions_SymbolFoundInIndexIsNotStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root := t.TempDir()

	c := chunkAt("a.go:handleRequest", "a.go", "handleRequest")
	require.NoError(t, s.UpsertChunksBatch(ctx, []store.ChunkEmbedding{{Chunk: c, Embedding: model.Embedding{1, 0, 0, 0}}}))

	note := &model.Note{ID: "note:1", Text: "handleRequest does X", Mentions: []string{"handleRequest"}}
	require.NoError(t, s.UpsertNote(ctx, note))

	out, err := detectStaleMentions(ctx, s, root)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSuggest_DedupesAgainstExistingNoteBySubstring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root := t.TempDir()

	note := &model.Note{ID: "note:1", Text: "see src/nonexistent.go for context", Mentions: []string{"src/nonexistent.go"}}
	require.NoError(t, s.UpsertNote(ctx, note))

	existing := &model.Note{ID: "note:2", Text: "Note has stale mentions [src/nonexistent.go]"}
	require.NoError(t, s.UpsertNote(ctx, existing))

	out, err := Suggest(ctx, s, root)
	require.NoError(t, err)
	for _, sg := range out {
		assert.NotEqual(t, "stale_mention", sg.Reason)
	}
}
