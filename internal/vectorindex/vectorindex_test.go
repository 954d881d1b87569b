package vectorindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqs-dev/cqs/internal/model"
)

func TestHNSW_AddAndSearch_FindsExactMatch(t *testing.T) {
	h := New()
	h.Add("a", model.Embedding{1, 0, 0, 0})
	h.Add("b", model.Embedding{0, 1, 0, 0})
	h.Add("c", model.Embedding{0, 0, 1, 0})

	got, err := h.Search(model.Embedding{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestHNSW_Add_ReplacesExistingID(t *testing.T) {
	h := New()
	h.Add("a", model.Embedding{1, 0, 0, 0})
	h.Add("a", model.Embedding{0, 1, 0, 0})

	assert.Equal(t, 1, h.Len())
	got, err := h.Search(model.Embedding{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestHNSW_Search_EmptyIndexReturnsNil(t *testing.T) {
	h := New()
	got, err := h.Search(model.Embedding{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHNSW_BuildBatched_AddsAllItems(t *testing.T) {
	h := New()
	items := map[string]model.Embedding{
		"a": {1, 0, 0, 0},
		"b": {0, 1, 0, 0},
		"c": {0, 0, 1, 0},
	}
	h.BuildBatched(func(yield func(id string, emb model.Embedding) bool) {
		for id, emb := range items {
			if !yield(id, emb) {
				return
			}
		}
	}, len(items))

	assert.Equal(t, 3, h.Len())
}

func TestHNSW_SaveThenTryLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	h := New()
	h.Add("a", model.Embedding{1, 0, 0, 0})
	h.Add("b", model.Embedding{0, 1, 0, 0})
	require.NoError(t, h.Save(dir))

	loaded, ok, err := TryLoad(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, loaded.Len())

	got, err := loaded.Search(model.Embedding{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestTryLoad_MissingDir_ReturnsFalse(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nonexistent")
	_, ok, err := TryLoad(dir)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHNSW_GPUAvailable_AlwaysFalse(t *testing.T) {
	h := New()
	assert.False(t, h.GPUAvailable())
}
