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

func chatBot(t *testing.T, fake *testutil.FakeModel, opts ...llamabot.Option) *llamabot.ChatBot {
	t.Helper()
	opts = append([]llamabot.Option{llamabot.WithCompleter(completerFor(t, fake))}, opts...)
	bot, err := llamabot.NewChatBot(context.Background(), "You are a patient tutor", opts...)
	require.NoError(t, err)
	return bot
}

func TestChatBot(t *testing.T) {
	t.Run("Should carry the conversation into later calls", func(t *testing.T) {
		fake := testutil.NewFakeModel().SetFallback("Understood.")
		bot := chatBot(t, fake)

		_, err := bot.Call(context.Background(), "My name is Ada")
		require.NoError(t, err)
		_, err = bot.Call(context.Background(), "What is my name?")
		require.NoError(t, err)

		calls := fake.Calls()
		require.Len(t, calls, 2)
		second := calls[1]
		require.Len(t, second, 4)
		assert.Equal(t, llms.ChatMessageTypeSystem, second[0].Role)
		assert.Equal(t, "My name is Ada", messageText(second[1]))
		assert.Equal(t, llms.ChatMessageTypeAI, second[2].Role)
		assert.Equal(t, "What is my name?", messageText(second[3]))
	})

	t.Run("Should grow history by two entries per successful call", func(t *testing.T) {
		bot := chatBot(t, testutil.NewFakeModel())
		require.Len(t, bot.History(), 1)

		_, err := bot.Call(context.Background(), "hello")
		require.NoError(t, err)

		history := bot.History()
		require.Len(t, history, 3)
		assert.Equal(t, chat.RoleSystem, history[0].Role)
		assert.Equal(t, chat.RoleHuman, history[1].Role)
		assert.Equal(t, chat.RoleAssistant, history[2].Role)
	})

	t.Run("Should leave history untouched when the model fails", func(t *testing.T) {
		boom := errors.New("connection reset")
		bot := chatBot(t, testutil.NewFakeModel().FailWith(boom))

		_, err := bot.Call(context.Background(), "hello")

		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Len(t, bot.History(), 1)
	})

	t.Run("Should forward exchanges to the bound recorder", func(t *testing.T) {
		bot := chatBot(t, testutil.NewFakeModel().SetFallback("Noted."))
		rec := recorder.New()
		ctx := recorder.WithRecorder(context.Background(), rec)

		_, err := bot.Call(ctx, "first lesson")
		require.NoError(t, err)
		_, err = bot.Call(context.Background(), "second lesson")
		require.NoError(t, err)

		require.Equal(t, 1, rec.Len())
		assert.Equal(t, "first lesson", rec.Entries()[0].Prompt)
	})
}
