package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestStatic_EmbedQuery_Dimensions(t *testing.T) {
	e := NewStatic()
	emb, err := e.EmbedQuery(context.Background(), "func parseConfig() {}")
	require.NoError(t, err)
	assert.Len(t, emb, Dimensions)
}

func TestStatic_EmbedQuery_Normalized(t *testing.T) {
	e := NewStatic()
	emb, err := e.EmbedQuery(context.Background(), "func parseConfig() {}")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, magnitude(emb), 0.001)
}

func TestStatic_EmbedQuery_Deterministic(t *testing.T) {
	e := NewStatic()
	a, err := e.EmbedQuery(context.Background(), "load configuration from disk")
	require.NoError(t, err)
	b, err := e.EmbedQuery(context.Background(), "load configuration from disk")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStatic_EmbedQuery_EmptyInputIsZeroVector(t *testing.T) {
	e := NewStatic()
	emb, err := e.EmbedQuery(context.Background(), "   ")
	require.NoError(t, err)
	for _, x := range emb {
		assert.Zero(t, x)
	}
}

func TestStatic_EmbedDocuments_BatchMatchesSingle(t *testing.T) {
	e := NewStatic()
	texts := []string{"parse config", "write config"}
	batch, err := e.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	single, err := e.EmbedQuery(context.Background(), texts[0])
	require.NoError(t, err)
	assert.Equal(t, single, batch[0])
}

func TestStatic_Close_RejectsFurtherEmbeds(t *testing.T) {
	e := NewStatic()
	require.NoError(t, e.Close())
	_, err := e.EmbedQuery(context.Background(), "anything")
	assert.Error(t, err)
}

func TestStatic_SimilarTextScoresHigherThanUnrelated(t *testing.T) {
	e := NewStatic()
	ctx := context.Background()
	a, _ := e.EmbedQuery(ctx, "parse configuration file from disk")
	b, _ := e.EmbedQuery(ctx, "parse config file from disk path")
	c, _ := e.EmbedQuery(ctx, "render a html template to the response")

	cosAB := dot(a, b)
	cosAC := dot(a, c)
	assert.Greater(t, cosAB, cosAC)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
