package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/amirmolavi/llamabot/knowledge/chunk"
)

// DefaultTopK bounds retrieval when the caller does not.
const DefaultTopK = 3

// Embedder turns texts into vectors. Implementations are expected to
// be safe for concurrent use.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SourceNode is one retrieved chunk with its similarity score.
type SourceNode struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type record struct {
	id        string
	text      string
	embedding []float32
	metadata  map[string]any
}

// Index is an in-memory vector index over document chunks with JSON
// snapshot persistence. Embedding happens outside the lock; lookups
// and mutations are guarded so one index can back concurrent bots.
type Index struct {
	mu        sync.RWMutex
	embedder  Embedder
	dimension int
	records   map[string]record
}

// New returns an empty index backed by the given embedder.
func New(embedder Embedder) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("index: embedder is required")
	}
	return &Index{
		embedder: embedder,
		records:  make(map[string]record),
	}, nil
}

// Load restores a snapshot previously written by SaveAs. A missing or
// malformed file is an error.
func Load(path string, embedder Embedder) (*Index, error) {
	idx, err := New(embedder)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("index: read %q: %w", path, err)
	}
	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("index: decode %q: %w", path, err)
	}
	for i := range payload.Records {
		rec := payload.Records[i]
		if payload.Dimension > 0 && len(rec.Embedding) != payload.Dimension {
			return nil, fmt.Errorf(
				"index: record %q dimension mismatch in %q (got %d want %d)",
				rec.ID, path, len(rec.Embedding), payload.Dimension,
			)
		}
		idx.records[rec.ID] = record{
			id:        rec.ID,
			text:      rec.Text,
			embedding: toFloat32(rec.Embedding),
			metadata:  rec.Metadata,
		}
	}
	idx.dimension = payload.Dimension
	return idx, nil
}

// Insert embeds the chunks and upserts them by chunk ID. The batch is
// validated as a whole before any record is stored.
func (idx *Index) Insert(ctx context.Context, chunks ...chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, 0, len(chunks))
	for i := range chunks {
		if chunks[i].ID == "" {
			return fmt.Errorf("index: chunk %d is missing an id", i)
		}
		texts = append(texts, chunks[i].Text)
	}
	vectors, err := idx.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("index: embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("index: received %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	dimension := idx.dimension
	if dimension == 0 && len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	for i := range vectors {
		if len(vectors[i]) != dimension {
			return fmt.Errorf(
				"index: chunk %q dimension mismatch (got %d want %d)",
				chunks[i].ID, len(vectors[i]), dimension,
			)
		}
	}
	idx.dimension = dimension
	for i := range chunks {
		c := chunks[i]
		idx.records[c.ID] = record{
			id:        c.ID,
			text:      c.Text,
			embedding: append([]float32(nil), vectors[i]...),
			metadata:  cloneMetadata(c.Metadata),
		}
	}
	return nil
}

// Query embeds the text and returns up to topK records ranked by
// cosine similarity, ties broken by ID. An empty index returns no
// nodes without calling the embedder for scoring.
func (idx *Index) Query(ctx context.Context, text string, topK int) ([]SourceNode, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if idx.Len() == 0 {
		return nil, nil
	}
	vector, err := idx.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.records) == 0 {
		return nil, nil
	}
	if len(vector) != idx.dimension {
		return nil, fmt.Errorf("index: query dimension mismatch (got %d want %d)", len(vector), idx.dimension)
	}
	candidates := make([]SourceNode, 0, len(idx.records))
	for _, rec := range idx.records {
		candidates = append(candidates, SourceNode{
			ID:       rec.id,
			Text:     rec.text,
			Score:    cosineSimilarity(rec.embedding, vector),
			Metadata: cloneMetadata(rec.metadata),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// SaveAs writes a snapshot of the index to path. The snapshot lands
// atomically via a temp file rename; records are ordered by ID so
// repeated saves of the same index produce identical files.
func (idx *Index) SaveAs(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("index: ensure directory %q: %w", dir, err)
	}
	idx.mu.RLock()
	payload := snapshotPayload{
		Dimension: idx.dimension,
		Records:   make([]snapshotRecord, 0, len(idx.records)),
	}
	for _, rec := range idx.records {
		payload.Records = append(payload.Records, snapshotRecord{
			ID:        rec.id,
			Text:      rec.text,
			Embedding: toFloat64(rec.embedding),
			Metadata:  rec.metadata,
		})
	}
	idx.mu.RUnlock()
	sort.Slice(payload.Records, func(i, j int) bool {
		return payload.Records[i].ID < payload.Records[j].ID
	})
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("index: encode snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("index: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("index: commit snapshot: %w", err)
	}
	return nil
}

// Len reports how many records the index holds.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Dimension reports the vector dimension, zero until the first insert.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

type snapshotPayload struct {
	Dimension int              `json:"dimension"`
	Records   []snapshotRecord `json:"records"`
}

type snapshotRecord struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Embedding []float64      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

func toFloat64(values []float32) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	for i := range values {
		out[i] = float64(values[i])
	}
	return out
}

func toFloat32(values []float64) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	for i := range values {
		out[i] = float32(values[i])
	}
	return out
}

func cloneMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
