package llamabot

import (
	"context"

	"github.com/amirmolavi/llamabot/chat"
	"github.com/amirmolavi/llamabot/knowledge/chunk"
	"github.com/amirmolavi/llamabot/knowledge/embedder"
	"github.com/amirmolavi/llamabot/knowledge/index"
	"github.com/amirmolavi/llamabot/pkg/config"
	"github.com/amirmolavi/llamabot/recorder"
)

// Option configures a bot at construction time. Every bot accepts the
// same option set; options that do not apply to a given bot are
// ignored by it.
type Option func(*botConfig)

type botConfig struct {
	modelName      string
	temperature    float64
	maxTokens      int
	apiKey         string
	baseURL        string
	label          string
	stream         chat.StreamFunc
	completer      chat.Completer
	embedder       index.Embedder
	store          *recorder.MessageStore
	docPaths       []string
	savedIndexPath string
	chunkSettings  chunk.Settings
}

func newBotConfig(opts ...Option) *botConfig {
	cfg := &botConfig{
		temperature:   chat.DefaultTemperature,
		chunkSettings: chunk.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithDocuments queues document sources, plain paths or doublestar
// globs, for indexing at construction time.
func WithDocuments(paths ...string) Option {
	return func(c *botConfig) { c.docPaths = append(c.docPaths, paths...) }
}

// WithSavedIndex restores the index from a snapshot previously written
// by SaveIndex. Documents given alongside are inserted into the
// restored index.
func WithSavedIndex(path string) Option {
	return func(c *botConfig) { c.savedIndexPath = path }
}

// WithChunkSize sets the maximum chunk length used when splitting
// documents for indexing.
func WithChunkSize(size int) Option {
	return func(c *botConfig) { c.chunkSettings.Size = size }
}

// WithChunkOverlap sets how much adjacent chunks overlap.
func WithChunkOverlap(overlap int) Option {
	return func(c *botConfig) { c.chunkSettings.Overlap = overlap }
}

// WithChunkStrategy selects the splitting strategy.
func WithChunkStrategy(strategy chunk.Strategy) Option {
	return func(c *botConfig) { c.chunkSettings.Strategy = strategy }
}

// WithModelName selects the chat model.
func WithModelName(name string) Option {
	return func(c *botConfig) { c.modelName = name }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(c *botConfig) { c.temperature = temperature }
}

// WithMaxTokens caps the length of model answers.
func WithMaxTokens(n int) Option {
	return func(c *botConfig) { c.maxTokens = n }
}

// WithAPIKey overrides the credential resolved from the environment.
func WithAPIKey(key string) Option {
	return func(c *botConfig) { c.apiKey = key }
}

// WithBaseURL points the OpenAI client at a different endpoint.
func WithBaseURL(url string) Option {
	return func(c *botConfig) { c.baseURL = url }
}

// WithStreamFunc forwards answer fragments to fn as the model produces
// them. The bot still assembles and returns the full answer.
func WithStreamFunc(fn chat.StreamFunc) Option {
	return func(c *botConfig) { c.stream = fn }
}

// WithCompleter injects the chat backend, bypassing client
// construction. Intended for tests and alternative model providers.
func WithCompleter(completer chat.Completer) Option {
	return func(c *botConfig) { c.completer = completer }
}

// WithEmbedder injects the embedding backend used by the index.
func WithEmbedder(e index.Embedder) Option {
	return func(c *botConfig) { c.embedder = e }
}

// WithLabel names the bot in persisted message logs.
func WithLabel(label string) Option {
	return func(c *botConfig) { c.label = label }
}

// WithMessageStore persists the full message history of every
// successful call to the given store.
func WithMessageStore(store *recorder.MessageStore) Option {
	return func(c *botConfig) { c.store = store }
}

func (c *botConfig) chatOptions() []chat.ModelOption {
	opts := []chat.ModelOption{chat.WithTemperature(c.temperature)}
	if c.modelName != "" {
		opts = append(opts, chat.WithModelName(c.modelName))
	}
	if c.maxTokens > 0 {
		opts = append(opts, chat.WithMaxTokens(c.maxTokens))
	}
	if c.apiKey != "" {
		opts = append(opts, chat.WithAPIKey(c.apiKey))
	}
	if c.baseURL != "" {
		opts = append(opts, chat.WithBaseURL(c.baseURL))
	}
	return opts
}

func (c *botConfig) resolveCompleter(ctx context.Context) (chat.Completer, error) {
	if c.completer != nil {
		return c.completer, nil
	}
	return chat.New(ctx, c.chatOptions()...)
}

func (c *botConfig) resolveEmbedder(ctx context.Context) (index.Embedder, error) {
	if c.embedder != nil {
		return c.embedder, nil
	}
	appCfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	return embedder.New(embedder.Config{
		Model:   appCfg.EmbeddingModel,
		APIKey:  appCfg.OpenAIAPIKey,
		BaseURL: appCfg.OpenAIBaseURL,
	})
}

func (c *botConfig) resolveLabel(fallback string) string {
	if c.label != "" {
		return c.label
	}
	return fallback
}
