package refindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqs-dev/cqs/internal/model"
)

func TestValidateName_RejectsDisallowedCharacters(t *testing.T) {
	require.NoError(t, validateName("stdlib"))
	assert.Error(t, validateName(""))
	assert.Error(t, validateName("../escape"))
	assert.Error(t, validateName("a/b"))
	assert.Error(t, validateName("a.b"))
}

func TestMergeResults_DedupesCodeByContentHashKeepingHighestScore(t *testing.T) {
	chunkA := &model.Chunk{ID: "a", ContentHash: "same-hash"}
	chunkB := &model.Chunk{ID: "b", ContentHash: "same-hash"}

	primary := []model.SearchResult{{Chunk: chunkA, Score: 0.5, Source: "code"}}
	refs := map[string][]model.SearchResult{
		"ref1": {{Chunk: chunkB, Score: 0.9, Source: "code"}},
	}

	merged := MergeResults(primary, refs, 10)
	require.Len(t, merged, 1)
	assert.Equal(t, "b", merged[0].Chunk.ID)
	assert.Equal(t, 0.9, merged[0].Score)
}

func TestMergeResults_NeverDedupesNotes(t *testing.T) {
	note := &model.Note{ID: "n1"}
	primary := []model.SearchResult{{Note: note, Score: 0.5, Source: "note"}}
	refs := map[string][]model.SearchResult{
		"ref1": {{Note: note, Score: 0.6, Source: "note"}},
	}

	merged := MergeResults(primary, refs, 10)
	assert.Len(t, merged, 2)
}

func TestMergeResults_TruncatesToLimit(t *testing.T) {
	var primary []model.SearchResult
	for i := 0; i < 5; i++ {
		primary = append(primary, model.SearchResult{
			Chunk: &model.Chunk{ID: string(rune('a' + i)), ContentHash: string(rune('a' + i))},
			Score: float64(5 - i), Source: "code",
		})
	}
	merged := MergeResults(primary, nil, 2)
	assert.Len(t, merged, 2)
}
