package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/amirmolavi/llamabot/pkg/config"
)

// ErrEmptyResponse reports a model reply that carried no choices.
var ErrEmptyResponse = errors.New("model returned an empty response")

const (
	DefaultModelName   = "gpt-4"
	DefaultTemperature = 0.0
)

// StreamFunc receives answer fragments as the model produces them.
type StreamFunc func(ctx context.Context, chunk []byte) error

// Completer produces one assistant message from an ordered conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts ...CallOption) (Message, error)
}

// CallOption adjusts a single Complete call.
type CallOption func(*callSettings)

type callSettings struct {
	streamFunc StreamFunc
}

// WithStreamFunc forwards fragments to fn as they arrive. The returned
// message always carries the fully assembled content; an error from fn
// aborts the call.
func WithStreamFunc(fn StreamFunc) CallOption {
	return func(s *callSettings) { s.streamFunc = fn }
}

// Model is a Completer backed by a langchaingo chat model. The OpenAI
// client is built on first use so a missing credential surfaces at the
// first call rather than at construction.
type Model struct {
	modelName   string
	temperature float64
	maxTokens   int
	apiKey      string
	baseURL     string

	buildOnce sync.Once
	buildErr  error
	llm       llms.Model
}

// ModelOption adjusts Model construction.
type ModelOption func(*Model)

func WithModelName(name string) ModelOption {
	return func(m *Model) { m.modelName = name }
}

func WithTemperature(temperature float64) ModelOption {
	return func(m *Model) { m.temperature = temperature }
}

func WithMaxTokens(n int) ModelOption {
	return func(m *Model) { m.maxTokens = n }
}

func WithAPIKey(key string) ModelOption {
	return func(m *Model) { m.apiKey = key }
}

func WithBaseURL(url string) ModelOption {
	return func(m *Model) { m.baseURL = url }
}

// WithLLM injects a prebuilt langchaingo model, bypassing client
// construction entirely.
func WithLLM(llm llms.Model) ModelOption {
	return func(m *Model) { m.llm = llm }
}

// New builds a Model, filling unset fields from the environment.
// A missing API key is not an error here; see Model.
func New(ctx context.Context, opts ...ModelOption) (*Model, error) {
	m := &Model{temperature: DefaultTemperature}
	for _, opt := range opts {
		opt(m)
	}
	if m.llm != nil {
		return m, nil
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if m.modelName == "" {
		m.modelName = cfg.ModelName
	}
	if m.apiKey == "" {
		m.apiKey = cfg.OpenAIAPIKey
	}
	if m.baseURL == "" {
		m.baseURL = cfg.OpenAIBaseURL
	}
	return m, nil
}

func (m *Model) client() (llms.Model, error) {
	m.buildOnce.Do(func() {
		if m.llm != nil {
			return
		}
		clientOpts := []openai.Option{openai.WithModel(m.modelName)}
		if m.apiKey != "" {
			clientOpts = append(clientOpts, openai.WithToken(m.apiKey))
		}
		if m.baseURL != "" {
			clientOpts = append(clientOpts, openai.WithBaseURL(m.baseURL))
		}
		client, err := openai.New(clientOpts...)
		if err != nil {
			m.buildErr = fmt.Errorf("chat: build openai client: %w", err)
			return
		}
		m.llm = client
	})
	return m.llm, m.buildErr
}

// Complete sends the conversation to the model and returns the
// assistant's message. When streaming is requested the full answer is
// still assembled before returning.
func (m *Model) Complete(ctx context.Context, messages []Message, opts ...CallOption) (Message, error) {
	settings := &callSettings{}
	for _, opt := range opts {
		opt(settings)
	}
	llm, err := m.client()
	if err != nil {
		return Message{}, err
	}
	callOpts := []llms.CallOption{llms.WithTemperature(m.temperature)}
	if m.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(m.maxTokens))
	}
	if settings.streamFunc != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(settings.streamFunc))
	}
	resp, err := llm.GenerateContent(ctx, convertMessages(messages), callOpts...)
	if err != nil {
		return Message{}, fmt.Errorf("chat: generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Message{}, ErrEmptyResponse
	}
	return AIMessage(resp.Choices[0].Content), nil
}

func convertMessages(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		out = append(out, llms.TextParts(mapRole(msg.Role), msg.Content))
	}
	return out
}

func mapRole(role Role) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleHuman:
		return llms.ChatMessageTypeHuman
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
