package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirmolavi/llamabot/chat"
)

func openStore(t *testing.T, path string) *MessageStore {
	t.Helper()
	store, err := OpenMessageStore(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMessageStore(t *testing.T) {
	t.Run("Should log and read back a conversation", func(t *testing.T) {
		store := openStore(t, filepath.Join(t.TempDir(), "message_log.db"))
		messages := []chat.Message{
			chat.SystemMessage("You are a helpful assistant."),
			chat.HumanMessage("What is the capital of Freedonia?"),
			chat.AIMessage("The capital of Freedonia is Fredonia City."),
		}

		require.NoError(t, store.LogMessages(context.Background(), "querybot", messages))

		convs, err := store.Conversations(context.Background(), "querybot")
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, "querybot", convs[0].Label)
		assert.Equal(t, messages, convs[0].Messages)
		assert.WithinDuration(t, time.Now().UTC(), convs[0].Timestamp, time.Minute)
	})

	t.Run("Should keep rows in insertion order", func(t *testing.T) {
		store := openStore(t, filepath.Join(t.TempDir(), "message_log.db"))

		require.NoError(t, store.LogMessages(context.Background(), "bot", []chat.Message{chat.HumanMessage("one")}))
		require.NoError(t, store.LogMessages(context.Background(), "bot", []chat.Message{chat.HumanMessage("two")}))

		convs, err := store.Conversations(context.Background(), "bot")
		require.NoError(t, err)
		require.Len(t, convs, 2)
		assert.Less(t, convs[0].ID, convs[1].ID)
		assert.Equal(t, "one", convs[0].Messages[0].Content)
		assert.Equal(t, "two", convs[1].Messages[0].Content)
	})

	t.Run("Should isolate rows by label", func(t *testing.T) {
		store := openStore(t, filepath.Join(t.TempDir(), "message_log.db"))

		require.NoError(t, store.LogMessages(context.Background(), "alpha", []chat.Message{chat.HumanMessage("from alpha")}))
		require.NoError(t, store.LogMessages(context.Background(), "beta", []chat.Message{chat.HumanMessage("from beta")}))

		convs, err := store.Conversations(context.Background(), "alpha")
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, "from alpha", convs[0].Messages[0].Content)
	})

	t.Run("Should reject an empty label", func(t *testing.T) {
		store := openStore(t, filepath.Join(t.TempDir(), "message_log.db"))

		err := store.LogMessages(context.Background(), "  ", []chat.Message{chat.HumanMessage("hi")})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "label is required")
	})

	t.Run("Should survive reopening an existing database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "message_log.db")
		store, err := OpenMessageStore(context.Background(), path)
		require.NoError(t, err)
		require.NoError(t, store.LogMessages(context.Background(), "bot", []chat.Message{chat.HumanMessage("kept")}))
		require.NoError(t, store.Close())

		reopened := openStore(t, path)

		convs, err := reopened.Conversations(context.Background(), "bot")
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, "kept", convs[0].Messages[0].Content)
	})
}

func TestDefaultMessageStorePath(t *testing.T) {
	t.Run("Should live under the user's home directory", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		path, err := DefaultMessageStorePath()

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".llamabot", "message_log.db"), path)
	})
}
