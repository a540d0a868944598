package llamabot

import (
	"context"

	"github.com/amirmolavi/llamabot/chat"
	"github.com/amirmolavi/llamabot/pkg/logger"
	"github.com/amirmolavi/llamabot/recorder"
)

const defaultSimpleBotLabel = "simplebot"

// SimpleBot sends its system message plus a single human message on
// every call and keeps no memory between calls.
type SimpleBot struct {
	label         string
	systemMessage string
	completer     chat.Completer
	store         *recorder.MessageStore
	stream        chat.StreamFunc
}

// NewSimpleBot builds a stateless bot around a system message.
func NewSimpleBot(ctx context.Context, systemMessage string, opts ...Option) (*SimpleBot, error) {
	cfg := newBotConfig(opts...)
	completer, err := cfg.resolveCompleter(ctx)
	if err != nil {
		return nil, err
	}
	return &SimpleBot{
		label:         cfg.resolveLabel(defaultSimpleBotLabel),
		systemMessage: systemMessage,
		completer:     completer,
		store:         cfg.store,
		stream:        cfg.stream,
	}, nil
}

// Call sends humanMessage to the model and returns the assistant's
// answer. The exchange is forwarded to the recorder bound to ctx, if
// any.
func (b *SimpleBot) Call(ctx context.Context, humanMessage string) (chat.Message, error) {
	messages := []chat.Message{
		chat.SystemMessage(b.systemMessage),
		chat.HumanMessage(humanMessage),
	}
	var callOpts []chat.CallOption
	if b.stream != nil {
		callOpts = append(callOpts, chat.WithStreamFunc(b.stream))
	}
	answer, err := b.completer.Complete(ctx, messages, callOpts...)
	if err != nil {
		return chat.Message{}, err
	}
	recorder.Record(ctx, humanMessage, answer.Content)
	if b.store != nil {
		logged := append(messages, answer)
		if err := b.store.LogMessages(ctx, b.label, logged); err != nil {
			logger.FromContext(ctx).Warn("failed to persist message history", "label", b.label, "error", err)
		}
	}
	return answer, nil
}

// Label identifies the bot in persisted message logs.
func (b *SimpleBot) Label() string {
	return b.label
}
