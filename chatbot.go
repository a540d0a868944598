package llamabot

import (
	"context"
	"sync"

	"github.com/amirmolavi/llamabot/chat"
	"github.com/amirmolavi/llamabot/pkg/logger"
	"github.com/amirmolavi/llamabot/recorder"
)

const defaultChatBotLabel = "chatbot"

// ChatBot keeps a running conversation: every call sends the full
// history to the model and appends the new exchange on success. One
// instance is safe for concurrent callers, though turns interleave in
// lock order.
type ChatBot struct {
	mu        sync.Mutex
	label     string
	completer chat.Completer
	store     *recorder.MessageStore
	stream    chat.StreamFunc
	history   []chat.Message
}

// NewChatBot builds a conversational bot seeded with a system message.
func NewChatBot(ctx context.Context, systemMessage string, opts ...Option) (*ChatBot, error) {
	cfg := newBotConfig(opts...)
	completer, err := cfg.resolveCompleter(ctx)
	if err != nil {
		return nil, err
	}
	return &ChatBot{
		label:     cfg.resolveLabel(defaultChatBotLabel),
		completer: completer,
		store:     cfg.store,
		stream:    cfg.stream,
		history:   []chat.Message{chat.SystemMessage(systemMessage)},
	}, nil
}

// Call sends the conversation so far plus humanMessage to the model.
// On success the human message and the answer join the history and
// the exchange is forwarded to the recorder bound to ctx, if any. A
// failed call leaves the history untouched.
func (b *ChatBot) Call(ctx context.Context, humanMessage string) (chat.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	transient := make([]chat.Message, 0, len(b.history)+1)
	transient = append(transient, b.history...)
	transient = append(transient, chat.HumanMessage(humanMessage))
	var callOpts []chat.CallOption
	if b.stream != nil {
		callOpts = append(callOpts, chat.WithStreamFunc(b.stream))
	}
	answer, err := b.completer.Complete(ctx, transient, callOpts...)
	if err != nil {
		return chat.Message{}, err
	}
	b.history = append(b.history, chat.HumanMessage(humanMessage), answer)
	recorder.Record(ctx, humanMessage, answer.Content)
	if b.store != nil {
		if err := b.store.LogMessages(ctx, b.label, b.history); err != nil {
			logger.FromContext(ctx).Warn("failed to persist message history", "label", b.label, "error", err)
		}
	}
	return answer, nil
}

// History returns a copy of the conversation so far, starting with the
// seeded system message.
func (b *ChatBot) History() []chat.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]chat.Message, len(b.history))
	copy(out, b.history)
	return out
}

// Label identifies the bot in persisted message logs.
func (b *ChatBot) Label() string {
	return b.label
}
