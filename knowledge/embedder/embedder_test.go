package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirmolavi/llamabot/internal/testutil"
)

type failingEmbedder struct {
	err error
}

func (f *failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}

func (f *failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, f.err
}

func TestWrap(t *testing.T) {
	t.Run("Should require an implementation", func(t *testing.T) {
		_, err := Wrap(Config{}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "implementation is required")
	})

	t.Run("Should default the model name", func(t *testing.T) {
		adapter, err := Wrap(Config{}, testutil.NewFakeEmbedder())
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, adapter.Model())
	})

	t.Run("Should reject a negative cache size", func(t *testing.T) {
		_, err := Wrap(Config{CacheSize: -1}, testutil.NewFakeEmbedder())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache size")
	})
}

func TestEmbedDocuments(t *testing.T) {
	t.Run("Should embed a batch through the implementation", func(t *testing.T) {
		fake := testutil.NewFakeEmbedder()
		adapter, err := Wrap(Config{}, fake)
		require.NoError(t, err)

		vectors, err := adapter.EmbedDocuments(context.Background(), []string{"alpha", "beta"})

		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.NotEmpty(t, vectors[0])
		assert.NotEmpty(t, vectors[1])
		assert.Equal(t, 2, fake.DocumentCalls())
	})

	t.Run("Should deduplicate identical texts within a batch", func(t *testing.T) {
		fake := testutil.NewFakeEmbedder()
		adapter, err := Wrap(Config{}, fake)
		require.NoError(t, err)

		vectors, err := adapter.EmbedDocuments(context.Background(), []string{"same", "same", "other"})

		require.NoError(t, err)
		require.Len(t, vectors, 3)
		assert.Equal(t, vectors[0], vectors[1])
		assert.Equal(t, 2, fake.DocumentCalls())
	})

	t.Run("Should serve repeated batches from the cache", func(t *testing.T) {
		fake := testutil.NewFakeEmbedder()
		adapter, err := Wrap(Config{}, fake)
		require.NoError(t, err)

		_, err = adapter.EmbedDocuments(context.Background(), []string{"alpha", "beta"})
		require.NoError(t, err)
		_, err = adapter.EmbedDocuments(context.Background(), []string{"alpha", "beta"})
		require.NoError(t, err)

		assert.Equal(t, 2, fake.DocumentCalls())
	})

	t.Run("Should propagate implementation failures with context", func(t *testing.T) {
		boom := errors.New("quota exhausted")
		adapter, err := Wrap(Config{Model: "test-model"}, &failingEmbedder{err: boom})
		require.NoError(t, err)

		_, err = adapter.EmbedDocuments(context.Background(), []string{"alpha"})

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), `embedder "test-model"`)
	})
}

func TestEmbedQuery(t *testing.T) {
	t.Run("Should cache repeated queries", func(t *testing.T) {
		fake := testutil.NewFakeEmbedder()
		adapter, err := Wrap(Config{}, fake)
		require.NoError(t, err)

		first, err := adapter.EmbedQuery(context.Background(), "what is the capital")
		require.NoError(t, err)
		second, err := adapter.EmbedQuery(context.Background(), "what is the capital")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, fake.QueryCalls())
	})

	t.Run("Should return copies callers cannot corrupt", func(t *testing.T) {
		fake := testutil.NewFakeEmbedder()
		adapter, err := Wrap(Config{}, fake)
		require.NoError(t, err)

		first, err := adapter.EmbedQuery(context.Background(), "stable")
		require.NoError(t, err)
		first[0] = 42

		second, err := adapter.EmbedQuery(context.Background(), "stable")
		require.NoError(t, err)
		assert.NotEqual(t, float32(42), second[0])
	})

	t.Run("Should propagate implementation failures", func(t *testing.T) {
		boom := errors.New("connection reset")
		adapter, err := Wrap(Config{}, &failingEmbedder{err: boom})
		require.NoError(t, err)

		_, err = adapter.EmbedQuery(context.Background(), "alpha")

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})
}

func TestNew(t *testing.T) {
	t.Run("Should defer credential failures to the first call", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		adapter, err := New(Config{})
		require.NoError(t, err)

		_, err = adapter.EmbedQuery(context.Background(), "anything")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "initialize openai client")
	})
}
