package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

const fakeEmbeddingDim = 64

// FakeEmbedder produces deterministic bag-of-words vectors: each token
// increments one dimension, then the vector is unit-normalized. Texts
// sharing keywords therefore score high under cosine similarity, which
// makes end-to-end retrieval tests behave like the real thing. Exact
// vectors can be pinned per text.
type FakeEmbedder struct {
	mu            sync.Mutex
	pinned        map[string][]float32
	documentCalls int
	queryCalls    int
}

func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{pinned: make(map[string][]float32)}
}

// SetVector pins an exact vector for text.
func (e *FakeEmbedder) SetVector(text string, vector []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pinned := make([]float32, len(vector))
	copy(pinned, vector)
	e.pinned[text] = pinned
}

// EmbedDocuments implements embeddings.Embedder.
func (e *FakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.documentCalls += len(texts)
	e.mu.Unlock()
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, e.vector(text))
	}
	return out, nil
}

// EmbedQuery implements embeddings.Embedder.
func (e *FakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queryCalls++
	e.mu.Unlock()
	return e.vector(text), nil
}

// DocumentCalls returns how many texts were embedded as documents.
func (e *FakeEmbedder) DocumentCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.documentCalls
}

// QueryCalls returns how many query embeddings were requested.
func (e *FakeEmbedder) QueryCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queryCalls
}

func (e *FakeEmbedder) vector(text string) []float32 {
	e.mu.Lock()
	if pinned, ok := e.pinned[text]; ok {
		out := make([]float32, len(pinned))
		copy(out, pinned)
		e.mu.Unlock()
		return out
	}
	e.mu.Unlock()
	vec := make([]float32, fakeEmbeddingDim)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%fakeEmbeddingDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
