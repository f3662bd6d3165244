package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-chat/internal/models"
)

type shortEmbedder struct{ HashEmbedder }

func (e *shortEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.HashEmbedder.EmbedDocuments(ctx, texts)
	if err != nil || len(vectors) < 2 {
		return vectors, err
	}
	vectors[1] = vectors[1][:len(vectors[1])-1]
	return vectors, nil
}

func TestEmbedChunks(t *testing.T) {
	ctx := context.Background()
	chunks := []models.Chunk{{Content: "alpha beta"}, {Content: "gamma delta"}}

	t.Run("One vector per chunk", func(t *testing.T) {
		vectors, err := EmbedChunks(ctx, NewHashEmbedder(16), chunks)
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Len(t, vectors[0], 16)
		assert.Len(t, vectors[1], 16)
	})

	t.Run("Remote failure is EmbeddingError", func(t *testing.T) {
		e := NewHashEmbedder(16)
		e.Err = errors.New("rate limited")
		_, err := EmbedChunks(ctx, e, chunks)
		require.ErrorIs(t, err, models.ErrEmbedding)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("Inconsistent dimensions are rejected", func(t *testing.T) {
		e := &shortEmbedder{HashEmbedder{Dim: 16}}
		_, err := EmbedChunks(ctx, e, chunks)
		require.ErrorIs(t, err, models.ErrEmbedding)
	})

	t.Run("No chunks no call", func(t *testing.T) {
		e := NewHashEmbedder(16)
		vectors, err := EmbedChunks(ctx, e, nil)
		require.NoError(t, err)
		assert.Nil(t, vectors)
		assert.Zero(t, e.Calls())
	})
}

func TestEmbedQuery(t *testing.T) {
	e := NewHashEmbedder(32)
	a, err := EmbedQuery(context.Background(), e, "The quick fox")
	require.NoError(t, err)
	b, err := EmbedQuery(context.Background(), e, "the QUICK fox!")
	require.NoError(t, err)
	assert.Equal(t, a, b, "tokenization ignores case and punctuation")

	e.Err = errors.New("boom")
	_, err = EmbedQuery(context.Background(), e, "x")
	assert.ErrorIs(t, err, models.ErrEmbedding)
}
