package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitter(t *testing.T) {
	t.Run("Should fall back to the recursive strategy by default", func(t *testing.T) {
		splitter, err := NewSplitter(Settings{Size: 100})

		require.NoError(t, err)
		assert.Equal(t, StrategyRecursive, splitter.Settings().Strategy)
	})
	t.Run("Should accept the token strategy", func(t *testing.T) {
		splitter, err := NewSplitter(Settings{Strategy: StrategyToken, Size: DefaultSize})

		require.NoError(t, err)
		assert.Equal(t, StrategyToken, splitter.Settings().Strategy)
	})
	t.Run("Should reject invalid settings", func(t *testing.T) {
		cases := []struct {
			name     string
			settings Settings
		}{
			{"zero size", Settings{Size: 0}},
			{"negative size", Settings{Size: -5}},
			{"negative overlap", Settings{Size: 100, Overlap: -1}},
			{"overlap equal to size", Settings{Size: 100, Overlap: 100}},
			{"unknown strategy", Settings{Strategy: "sliding", Size: 100}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := NewSplitter(tc.settings)
				assert.Error(t, err)
			})
		}
	})
}

func TestSplit(t *testing.T) {
	t.Run("Should split long text into bounded ordered chunks", func(t *testing.T) {
		splitter, err := NewSplitter(Settings{Size: 80})
		require.NoError(t, err)
		text := strings.TrimSpace(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20))

		chunks, err := splitter.Split(Document{ID: "fox.txt", Text: text})

		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)
		for i, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 80)
			assert.NotEmpty(t, c.Text)
			assert.Equal(t, i, c.Metadata["chunk_index"])
			assert.Equal(t, "fox.txt", c.Metadata["source"])
		}
	})
	t.Run("Should produce deterministic chunk identifiers", func(t *testing.T) {
		splitter, err := NewSplitter(Settings{Size: 60})
		require.NoError(t, err)
		doc := Document{ID: "notes.md", Text: strings.Repeat("All work and no play makes a dull bot. ", 10)}

		first, err := splitter.Split(doc)
		require.NoError(t, err)
		second, err := splitter.Split(doc)
		require.NoError(t, err)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
			assert.Equal(t, first[i].Hash, second[i].Hash)
		}
	})
	t.Run("Should scope chunk identifiers to the document", func(t *testing.T) {
		splitter, err := NewSplitter(Settings{Size: 500})
		require.NoError(t, err)

		a, err := splitter.Split(Document{ID: "a.txt", Text: "Shared sentence for both files."})
		require.NoError(t, err)
		b, err := splitter.Split(Document{ID: "b.txt", Text: "Shared sentence for both files."})
		require.NoError(t, err)

		require.Len(t, a, 1)
		require.Len(t, b, 1)
		assert.Equal(t, a[0].Hash, b[0].Hash)
		assert.NotEqual(t, a[0].ID, b[0].ID)
	})
	t.Run("Should return nothing for empty documents", func(t *testing.T) {
		splitter, err := NewSplitter(Settings{Size: 100})
		require.NoError(t, err)

		chunks, err := splitter.Split(Document{ID: "empty.txt", Text: "   \n\t  "})

		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
	t.Run("Should keep a short document as a single chunk", func(t *testing.T) {
		splitter, err := NewSplitter(DefaultSettings())
		require.NoError(t, err)

		chunks, err := splitter.Split(Document{ID: "fact.txt", Text: "The capital of Freedonia is Fredonia City."})

		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "The capital of Freedonia is Fredonia City.", chunks[0].Text)
	})
	t.Run("Should carry document metadata into every chunk", func(t *testing.T) {
		splitter, err := NewSplitter(Settings{Size: 50})
		require.NoError(t, err)
		doc := Document{
			ID:       "report.txt",
			Text:     strings.Repeat("Quarterly numbers went up and to the right. ", 8),
			Metadata: map[string]any{"content_type": "text/plain"},
		}

		chunks, err := splitter.Split(doc)

		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		for _, c := range chunks {
			assert.Equal(t, "text/plain", c.Metadata["content_type"])
		}
		assert.Nil(t, doc.Metadata["chunk_index"], "source metadata must not be mutated")
	})
}
