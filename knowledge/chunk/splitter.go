package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Splitting strategies. Recursive character splitting is the default;
// the token strategy counts model tokens instead and resolves its BPE
// vocabulary on first use.
const (
	StrategyRecursive Strategy = "recursive"
	StrategyToken     Strategy = "token"
)

const (
	DefaultSize    = 2000
	DefaultOverlap = 0
)

// DefaultSettings returns the stock splitter configuration.
func DefaultSettings() Settings {
	return Settings{Strategy: StrategyRecursive, Size: DefaultSize, Overlap: DefaultOverlap}
}

// Splitter cuts documents into deterministic chunks.
type Splitter struct {
	settings Settings
}

// NewSplitter validates settings and builds a splitter.
func NewSplitter(settings Settings) (*Splitter, error) {
	if settings.Strategy == "" {
		settings.Strategy = StrategyRecursive
	}
	if settings.Strategy != StrategyRecursive && settings.Strategy != StrategyToken {
		return nil, fmt.Errorf("chunk: unknown strategy %q", settings.Strategy)
	}
	if settings.Size <= 0 {
		return nil, errors.New("chunk: size must be greater than zero")
	}
	if settings.Overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if settings.Overlap >= settings.Size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", settings.Overlap, settings.Size)
	}
	return &Splitter{settings: settings}, nil
}

// Settings returns the validated configuration.
func (s *Splitter) Settings() Settings {
	return s.settings
}

// Split cuts one document into ordered chunks. Chunk IDs are derived
// from the document identity, position, and content hash, so repeated
// runs over identical input produce identical chunks.
func (s *Splitter) Split(doc Document) ([]Chunk, error) {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil, nil
	}
	segments, err := s.splitText(text)
	if err != nil {
		return nil, fmt.Errorf("chunk: split document %s: %w", doc.ID, err)
	}
	chunks := make([]Chunk, 0, len(segments))
	for idx, segment := range segments {
		chunkText := strings.TrimSpace(segment)
		if chunkText == "" {
			continue
		}
		hash := hashText(chunkText)
		metadata := cloneMetadata(doc.Metadata)
		metadata["chunk_index"] = idx
		metadata["source"] = doc.ID
		chunks = append(chunks, Chunk{
			ID:       hashText(doc.ID + "::" + fmt.Sprint(idx) + "::" + hash),
			Text:     chunkText,
			Hash:     hash,
			Metadata: metadata,
		})
	}
	return chunks, nil
}

func (s *Splitter) splitText(text string) ([]string, error) {
	switch s.settings.Strategy {
	case StrategyToken:
		splitter := textsplitter.NewTokenSplitter(
			textsplitter.WithChunkSize(s.settings.Size),
			textsplitter.WithChunkOverlap(s.settings.Overlap),
		)
		return splitter.SplitText(text)
	default:
		splitter := textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(s.settings.Size),
			textsplitter.WithChunkOverlap(s.settings.Overlap),
		)
		return splitter.SplitText(text)
	}
}

func hashText(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}

func cloneMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
