package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// FakeModel is a deterministic llms.Model for tests. A response is
// picked by case-insensitive substring match against the flattened
// prompt text, first rule wins, falling back to a default answer.
type FakeModel struct {
	mu       sync.Mutex
	rules    []fakeRule
	fallback string
	err      error
	empty    bool
	calls    [][]llms.MessageContent
}

type fakeRule struct {
	pattern  string
	response string
}

func NewFakeModel() *FakeModel {
	return &FakeModel{fallback: "I don't know."}
}

// AddResponse registers a response for prompts containing pattern.
func (m *FakeModel) AddResponse(pattern, response string) *FakeModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, fakeRule{pattern: pattern, response: response})
	return m
}

// SetFallback replaces the default answer used when no rule matches.
func (m *FakeModel) SetFallback(response string) *FakeModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
	return m
}

// FailWith makes every subsequent call return err.
func (m *FakeModel) FailWith(err error) *FakeModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// RespondEmpty makes every subsequent call return zero choices.
func (m *FakeModel) RespondEmpty() *FakeModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.empty = true
	return m
}

// Calls returns the recorded message sets, one per invocation.
func (m *FakeModel) Calls() [][]llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]llms.MessageContent, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the model was invoked.
func (m *FakeModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// GenerateContent implements llms.Model.
func (m *FakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	snapshot := make([]llms.MessageContent, len(messages))
	copy(snapshot, messages)
	m.calls = append(m.calls, snapshot)
	err := m.err
	empty := m.empty
	response := m.fallback
	flattened := strings.ToLower(flattenText(messages))
	for _, rule := range m.rules {
		if strings.Contains(flattened, strings.ToLower(rule.pattern)) {
			response = rule.response
			break
		}
	}
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if empty {
		return &llms.ContentResponse{}, nil
	}
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.StreamingFunc != nil {
		for _, chunk := range splitChunks(response, 8) {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, fmt.Errorf("streaming aborted: %w", err)
			}
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: response}},
	}, nil
}

// Call implements llms.Model.
func (m *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}

func flattenText(messages []llms.MessageContent) string {
	var b strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				b.WriteString(text.Text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func splitChunks(s string, size int) []string {
	var chunks []string
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}
