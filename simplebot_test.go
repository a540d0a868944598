package llamabot_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	llamabot "github.com/amirmolavi/llamabot"
	"github.com/amirmolavi/llamabot/chat"
	"github.com/amirmolavi/llamabot/internal/testutil"
	"github.com/amirmolavi/llamabot/recorder"
)

func simpleBot(t *testing.T, fake *testutil.FakeModel, opts ...llamabot.Option) *llamabot.SimpleBot {
	t.Helper()
	opts = append([]llamabot.Option{llamabot.WithCompleter(completerFor(t, fake))}, opts...)
	bot, err := llamabot.NewSimpleBot(context.Background(), "You are a terse poet", opts...)
	require.NoError(t, err)
	return bot
}

func TestSimpleBot(t *testing.T) {
	t.Run("Should send only the system message and one human message", func(t *testing.T) {
		fake := testutil.NewFakeModel().AddResponse("haiku", "An old silent pond / a frog jumps into the pond / splash, silence again")
		bot := simpleBot(t, fake)

		answer, err := bot.Call(context.Background(), "Write a haiku about ponds")

		require.NoError(t, err)
		assert.Equal(t, chat.RoleAssistant, answer.Role)
		assert.Contains(t, answer.Content, "frog")
		calls := fake.Calls()
		require.Len(t, calls, 1)
		require.Len(t, calls[0], 2)
		assert.Equal(t, llms.ChatMessageTypeSystem, calls[0][0].Role)
		assert.Equal(t, "You are a terse poet", messageText(calls[0][0]))
		assert.Equal(t, llms.ChatMessageTypeHuman, calls[0][1].Role)
	})

	t.Run("Should keep no memory between calls", func(t *testing.T) {
		fake := testutil.NewFakeModel()
		bot := simpleBot(t, fake)

		_, err := bot.Call(context.Background(), "first prompt")
		require.NoError(t, err)
		_, err = bot.Call(context.Background(), "second prompt")
		require.NoError(t, err)

		calls := fake.Calls()
		require.Len(t, calls, 2)
		assert.Len(t, calls[1], 2)
		assert.NotContains(t, messageText(calls[1][1]), "first prompt")
	})

	t.Run("Should forward exchanges to the bound recorder", func(t *testing.T) {
		bot := simpleBot(t, testutil.NewFakeModel().SetFallback("noted"))
		rec := recorder.New()
		ctx := recorder.WithRecorder(context.Background(), rec)

		_, err := bot.Call(ctx, "remember this")
		require.NoError(t, err)

		require.Equal(t, 1, rec.Len())
		assert.Equal(t, recorder.Entry{Prompt: "remember this", Response: "noted"}, rec.Entries()[0])
	})

	t.Run("Should propagate model failures", func(t *testing.T) {
		boom := errors.New("model offline")
		bot := simpleBot(t, testutil.NewFakeModel().FailWith(boom))

		_, err := bot.Call(context.Background(), "anything")

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})
}
