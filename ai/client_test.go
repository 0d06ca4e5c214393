package ai_test

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/libris/ai"
	"github.com/poiesic/libris/ai/mock"
	"github.com/poiesic/libris/ai/sparse"
	"github.com/poiesic/libris/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, embedder ai.Embedder, retries int) *ai.Client {
	t.Helper()
	cfg := ai.NewConfig(
		ai.WithMaxRetries(retries),
		ai.WithRetryDelay(time.Millisecond),
	)
	client, err := ai.NewClient(embedder, sparse.NewEncoder(), cfg)
	require.NoError(t, err)
	return client
}

func TestEmbedBatch(t *testing.T) {
	ctx := context.Background()
	texts := []string{"first chunk of text", "second chunk of text"}

	t.Run("returns paired vectors in order", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		client := newTestClient(t, embedder, 3)

		dense, lexical, err := client.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		require.Len(t, dense, 2)
		require.Len(t, lexical, 2)
		assert.Equal(t, 1, embedder.CallCount())
		assert.NotEmpty(t, lexical[0].Indices)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		client := newTestClient(t, embedder, 3)

		dense, lexical, err := client.EmbedBatch(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, dense)
		assert.Nil(t, lexical)
		assert.Zero(t, embedder.CallCount())
	})

	t.Run("recovers from transient failures", func(t *testing.T) {
		embedder := mock.NewMockEmbedder().FailWith(
			&ai.ProviderError{StatusCode: 503},
			&ai.ProviderError{StatusCode: 429},
			&ai.ProviderError{StatusCode: 502},
		)
		client := newTestClient(t, embedder, 3)

		dense, _, err := client.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		assert.Len(t, dense, 2)
		assert.Equal(t, 4, embedder.CallCount())
	})

	t.Run("exhausted retries surface as transient/exhausted", func(t *testing.T) {
		embedder := mock.NewMockEmbedder().FailWith(
			&ai.ProviderError{StatusCode: 503},
			&ai.ProviderError{StatusCode: 503},
			&ai.ProviderError{StatusCode: 503},
		)
		client := newTestClient(t, embedder, 2)

		_, _, err := client.EmbedBatch(ctx, texts)
		require.Error(t, err)
		assert.Equal(t, 3, embedder.CallCount())

		se := core.StepErrorFrom(err)
		require.NotNil(t, se)
		assert.Equal(t, core.StepEmbedding, se.Step)
		assert.Equal(t, core.KindTransientExhausted, se.Kind)
		assert.Equal(t, 2, se.Retries)
	})

	t.Run("permanent failure skips retries", func(t *testing.T) {
		embedder := mock.NewMockEmbedder().FailWith(&ai.ProviderError{StatusCode: 401})
		client := newTestClient(t, embedder, 5)

		_, _, err := client.EmbedBatch(ctx, texts)
		require.Error(t, err)
		assert.Equal(t, 1, embedder.CallCount())

		se := core.StepErrorFrom(err)
		require.NotNil(t, se)
		assert.Equal(t, core.KindPermanent, se.Kind)
	})

	t.Run("vector count mismatch is permanent", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, in []string) ([][]float32, error) {
			return [][]float32{{0.1}}, nil
		}
		client := newTestClient(t, embedder, 3)

		_, _, err := client.EmbedBatch(ctx, texts)
		require.Error(t, err)
		se := core.StepErrorFrom(err)
		require.NotNil(t, se)
		assert.Equal(t, core.KindPermanent, se.Kind)
	})
}

func TestNewClientValidation(t *testing.T) {
	_, err := ai.NewClient(nil, sparse.NewEncoder(), nil)
	assert.Error(t, err)

	_, err = ai.NewClient(mock.NewMockEmbedder(), nil, nil)
	assert.Error(t, err)

	_, err = ai.NewClient(mock.NewMockEmbedder(), sparse.NewEncoder(), ai.NewConfig(ai.WithModel("")))
	assert.Error(t, err)
}
