package llamabot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/amirmolavi/llamabot/chat"
	"github.com/amirmolavi/llamabot/knowledge/chunk"
	"github.com/amirmolavi/llamabot/knowledge/index"
	"github.com/amirmolavi/llamabot/knowledge/loader"
	"github.com/amirmolavi/llamabot/pkg/logger"
	"github.com/amirmolavi/llamabot/recorder"
)

// DefaultTopK bounds retrieval when Answer is called without a limit.
const DefaultTopK = index.DefaultTopK

const defaultQueryBotLabel = "querybot"

// Every bot opens its history with this instruction right after the
// caller's system message.
const dontHallucinateMessage = "Do not hallucinate content.\n" +
	"If you cannot answer something, respond by saying that you don't know.\n"

// Markers framing the injected retrieval context in the transient
// prompt sent to the model.
const (
	contextIntroMessage = "Here is the context you will be working with:"
	contextQueryMessage = "Based on this context, answer the following query:"
)

// QueryBot answers queries against a private document collection.
// Each answer is grounded on the chunks most relevant to the query;
// the retrieved context is injected into a transient prompt only and
// never enters the bot's conversation history. One instance is safe
// for concurrent callers.
type QueryBot struct {
	mu            sync.Mutex
	label         string
	systemMessage string
	completer     chat.Completer
	embedder      index.Embedder
	splitter      *chunk.Splitter
	idx           *index.Index
	history       []chat.Message
	sourceNodes   map[string][]index.SourceNode
	store         *recorder.MessageStore
	stream        chat.StreamFunc
}

// NewQueryBot builds a retrieval-augmented bot. Provide documents with
// WithDocuments, a snapshot with WithSavedIndex, or both; a bot built
// with neither cannot answer until a document is inserted.
func NewQueryBot(ctx context.Context, systemMessage string, opts ...Option) (*QueryBot, error) {
	cfg := newBotConfig(opts...)
	completer, err := cfg.resolveCompleter(ctx)
	if err != nil {
		return nil, err
	}
	emb, err := cfg.resolveEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	splitter, err := chunk.NewSplitter(cfg.chunkSettings)
	if err != nil {
		return nil, err
	}
	bot := &QueryBot{
		label:         cfg.resolveLabel(defaultQueryBotLabel),
		systemMessage: systemMessage,
		completer:     completer,
		embedder:      emb,
		splitter:      splitter,
		sourceNodes:   make(map[string][]index.SourceNode),
		store:         cfg.store,
		stream:        cfg.stream,
		history: []chat.Message{
			chat.SystemMessage(systemMessage),
			chat.SystemMessage(dontHallucinateMessage),
		},
	}
	if cfg.savedIndexPath != "" {
		bot.idx, err = index.Load(cfg.savedIndexPath, emb)
		if err != nil {
			return nil, err
		}
	}
	if len(cfg.docPaths) > 0 {
		if bot.idx == nil {
			bot.idx, err = index.New(emb)
			if err != nil {
				return nil, err
			}
		}
		paths, err := loader.ExpandGlobs(cfg.docPaths)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			if err := bot.insertPath(ctx, path); err != nil {
				return nil, err
			}
		}
	}
	if bot.idx == nil {
		logger.FromContext(ctx).Warn("no documents provided to index; the bot cannot answer until one is inserted")
	}
	return bot, nil
}

// Answer retrieves the topK chunks most relevant to query, asks the
// model for an answer grounded on them, and returns the assistant
// message. On success the human query and the answer are appended to
// the history and the exchange is forwarded to the recorder bound to
// ctx, if any. A failed call leaves all bot state untouched.
func (b *QueryBot) Answer(ctx context.Context, query string, topK int) (chat.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx == nil {
		return chat.Message{}, ErrIndexNotConfigured
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	log := logger.FromContext(ctx)
	log.Debug("querying index", "label", b.label, "top_k", topK)
	nodes, err := b.idx.Query(ctx, query, topK)
	if err != nil {
		return chat.Message{}, err
	}
	transient := make([]chat.Message, 0, len(nodes)+4)
	transient = append(transient, chat.SystemMessage(b.systemMessage))
	transient = append(transient, chat.SystemMessage(contextIntroMessage))
	for _, node := range nodes {
		transient = append(transient, chat.SystemMessage(node.Text))
	}
	transient = append(transient, chat.SystemMessage(contextQueryMessage))
	transient = append(transient, chat.HumanMessage(query))
	var callOpts []chat.CallOption
	if b.stream != nil {
		callOpts = append(callOpts, chat.WithStreamFunc(b.stream))
	}
	answer, err := b.completer.Complete(ctx, transient, callOpts...)
	if err != nil {
		return chat.Message{}, err
	}
	// State mutates only once the full answer is in hand.
	b.history = append(b.history, chat.HumanMessage(query), answer)
	b.sourceNodes[query] = nodes
	recorder.Record(ctx, query, answer.Content)
	b.persistHistory(ctx, log)
	return answer, nil
}

// Insert loads, splits, and indexes one document source. On a bot
// built with neither documents nor a saved index, the first insert
// establishes the index.
func (b *QueryBot) Insert(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx == nil {
		idx, err := index.New(b.embedder)
		if err != nil {
			return err
		}
		b.idx = idx
	}
	return b.insertPath(ctx, path)
}

// SaveIndex persists the index snapshot, normalizing the file
// extension to ".json" first, and returns the path actually written.
func (b *QueryBot) SaveIndex(path string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx == nil {
		return "", ErrIndexNotConfigured
	}
	normalized := normalizeIndexPath(path)
	if err := b.idx.SaveAs(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// History returns a copy of the conversation so far, starting with the
// two seeded system instructions.
func (b *QueryBot) History() []chat.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]chat.Message, len(b.history))
	copy(out, b.history)
	return out
}

// SourceNodes returns the chunks retrieved for the most recent call
// with exactly this query string.
func (b *QueryBot) SourceNodes(query string) ([]index.SourceNode, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	nodes, ok := b.sourceNodes[query]
	if !ok {
		return nil, false
	}
	out := make([]index.SourceNode, len(nodes))
	copy(out, nodes)
	return out, true
}

// IndexSize reports how many chunks the index holds, zero when no
// index is configured.
func (b *QueryBot) IndexSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx == nil {
		return 0
	}
	return b.idx.Len()
}

// Label identifies the bot in persisted message logs.
func (b *QueryBot) Label() string {
	return b.label
}

func (b *QueryBot) insertPath(ctx context.Context, path string) error {
	log := logger.FromContext(ctx)
	log.Info("inserting document into index", "label", b.label, "path", path)
	doc, err := loader.Load(path)
	if err != nil {
		return err
	}
	chunks, err := b.splitter.Split(doc)
	if err != nil {
		return err
	}
	return b.idx.Insert(ctx, chunks...)
}

func (b *QueryBot) persistHistory(ctx context.Context, log logger.Logger) {
	if b.store == nil {
		return
	}
	if err := b.store.LogMessages(ctx, b.label, b.history); err != nil {
		log.Warn("failed to persist message history", "label", b.label, "error", err)
	}
}

func normalizeIndexPath(path string) string {
	if ext := filepath.Ext(path); ext != ".json" {
		return strings.TrimSuffix(path, ext) + ".json"
	}
	return path
}
