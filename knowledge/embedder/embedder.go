package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-ada-002"

// DefaultCacheSize bounds the embedding cache when none is configured.
const DefaultCacheSize = 512

// Config carries the settings for an OpenAI-backed embedder.
type Config struct {
	Model     string
	APIKey    string
	BaseURL   string
	CacheSize int
}

// Adapter wraps a langchaingo embedder with an LRU cache keyed by
// content hash. The OpenAI client is built on first use so that a
// missing credential surfaces on the first embedding call rather than
// at construction.
type Adapter struct {
	model     string
	apiKey    string
	baseURL   string
	cache     *lru.Cache[string, []float32]
	buildOnce sync.Once
	buildErr  error
	impl      embeddings.Embedder
}

// New constructs an adapter that talks to the OpenAI embeddings API.
func New(cfg Config) (*Adapter, error) {
	return newAdapter(cfg)
}

// Wrap constructs an adapter around an existing embedder implementation.
func Wrap(cfg Config, impl embeddings.Embedder) (*Adapter, error) {
	if impl == nil {
		return nil, errors.New("embedder: implementation is required")
	}
	adapter, err := newAdapter(cfg)
	if err != nil {
		return nil, err
	}
	adapter.impl = impl
	return adapter, nil
}

func newAdapter(cfg Config) (*Adapter, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	size := cfg.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size < 0 {
		return nil, fmt.Errorf("embedder %q: cache size must be greater than zero", model)
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedder %q: init cache: %w", model, err)
	}
	return &Adapter{
		model:   model,
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		cache:   cache,
	}, nil
}

// Model returns the embedding model name the adapter was built with.
func (a *Adapter) Model() string {
	return a.model
}

// EmbedDocuments embeds a batch of texts, serving repeats from the
// cache and deduplicating identical texts within the batch.
func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	impl, err := a.client()
	if err != nil {
		return nil, err
	}
	results := make([][]float32, len(texts))
	missing := make(map[string][]int)
	for i, text := range texts {
		if vector, ok := a.cache.Get(cacheKey(text)); ok {
			results[i] = cloneVector(vector)
			continue
		}
		missing[text] = append(missing[text], i)
	}
	if len(missing) == 0 {
		return results, nil
	}
	uniqueMissing := make([]string, 0, len(missing))
	for text := range missing {
		uniqueMissing = append(uniqueMissing, text)
	}
	embedded, err := impl.EmbedDocuments(ctx, uniqueMissing)
	if err != nil {
		return nil, a.withContext(err)
	}
	if len(embedded) != len(uniqueMissing) {
		return nil, a.withContext(fmt.Errorf("received %d embeddings for %d texts", len(embedded), len(uniqueMissing)))
	}
	for i, text := range uniqueMissing {
		for _, idx := range missing[text] {
			results[idx] = cloneVector(embedded[i])
		}
		a.cache.Add(cacheKey(text), cloneVector(embedded[i]))
	}
	return results, nil
}

// EmbedQuery embeds a single text, consulting the cache first.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	impl, err := a.client()
	if err != nil {
		return nil, err
	}
	key := cacheKey(text)
	if vector, ok := a.cache.Get(key); ok {
		return cloneVector(vector), nil
	}
	vector, err := impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, a.withContext(err)
	}
	a.cache.Add(key, cloneVector(vector))
	return cloneVector(vector), nil
}

func (a *Adapter) client() (embeddings.Embedder, error) {
	a.buildOnce.Do(func() {
		if a.impl != nil {
			return
		}
		opts := []openai.Option{openai.WithEmbeddingModel(a.model)}
		if a.apiKey != "" {
			opts = append(opts, openai.WithToken(a.apiKey))
		}
		if a.baseURL != "" {
			opts = append(opts, openai.WithBaseURL(a.baseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			a.buildErr = fmt.Errorf("embedder %q: initialize openai client: %w", a.model, err)
			return
		}
		impl, err := embeddings.NewEmbedder(client)
		if err != nil {
			a.buildErr = fmt.Errorf("embedder %q: construct embedder: %w", a.model, err)
			return
		}
		a.impl = impl
	})
	if a.buildErr != nil {
		return nil, a.buildErr
	}
	return a.impl, nil
}

func (a *Adapter) withContext(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("embedder %q: %w", a.model, err)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
