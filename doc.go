// Package llamabot provides small, composable chatbots on top of
// langchaingo.
//
// Three bots cover the common shapes: SimpleBot answers one-off
// prompts with no memory, ChatBot keeps a running conversation, and
// QueryBot answers questions grounded on a private document
// collection using retrieval-augmented generation. All three read
// their OpenAI credentials from the environment (or a .env /
// ~/.llamabot/.llamabotrc file) and default to gpt-4 at temperature 0.
//
// A QueryBot indexes documents at construction time and keeps the
// retrieved context out of its conversation history:
//
//	bot, err := llamabot.NewQueryBot(ctx,
//	    "You are a helpful librarian",
//	    llamabot.WithDocuments("notes/**/*.md"),
//	)
//	if err != nil {
//	    ...
//	}
//	answer, err := bot.Answer(ctx, "What is the capital of Freedonia?", 3)
//
// Wrap any sequence of calls in a recorder scope to capture the
// prompt/response traffic of every bot invoked with that context:
//
//	rec := recorder.New()
//	ctx = recorder.WithRecorder(ctx, rec)
//	_, _ = bot.Answer(ctx, "And its population?", 3)
//	_ = rec.Save("transcript.md")
package llamabot
