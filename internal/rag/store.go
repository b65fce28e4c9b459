// Package rag holds the per-topic knowledge stores: paragraphs of reference
// text with their embeddings, searched by brute-force cosine similarity.
package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "github.com/garyellow/anan-assistant-go/internal/errors"
	"github.com/garyellow/anan-assistant-go/internal/genai"
)

// DefaultTopK is the number of chunks joined into a context.
const DefaultTopK = 5

// ContextSeparator joins retrieved chunks.
const ContextSeparator = "\n---\n"

var (
	// ErrEmptyStore means the topic has no reference text.
	ErrEmptyStore = fmt.Errorf("rag: store is empty: %w", apperrors.ErrNotFound)
	// ErrDimensionMismatch means the query and a chunk come from different
	// vector spaces.
	ErrDimensionMismatch = errors.New("rag: vector dimension mismatch")
)

// Chunk is one paragraph of reference text.
type Chunk struct {
	Index  int       `json:"index"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// Store is an ordered, immutable set of chunks embedded with one model.
type Store struct {
	chunks []Chunk
	model  string
}

// Match is a chunk with its similarity to a query.
type Match struct {
	Chunk Chunk
	Score float64
}

// Split breaks raw text into trimmed, non-empty paragraphs.
func Split(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var out []string
	for part := range strings.SplitSeq(raw, "\n\n") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Build splits raw into paragraphs and embeds them in one batch. Empty
// input yields an empty store without calling the embedder.
func Build(ctx context.Context, raw string, embedder genai.Embedder) (*Store, error) {
	texts := Split(raw)
	if len(texts) == 0 {
		return &Store{model: embedder.Model()}, nil
	}

	vecs, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks: %w", len(texts), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(texts))
	}

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Index: i, Text: t, Vector: vecs[i]}
	}
	return &Store{chunks: chunks, model: embedder.Model()}, nil
}

// NewStore wraps already-embedded chunks, dropping blank ones and
// renumbering the rest.
func NewStore(model string, chunks []Chunk) *Store {
	kept := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		c.Index = len(kept)
		kept = append(kept, c)
	}
	return &Store{chunks: kept, model: model}
}

// Len returns the number of chunks.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.chunks)
}

// Model returns the embedding model the vectors came from.
func (s *Store) Model() string {
	if s == nil {
		return ""
	}
	return s.model
}

// Chunks returns a copy of the chunk list.
func (s *Store) Chunks() []Chunk {
	if s == nil {
		return nil
	}
	return append([]Chunk(nil), s.chunks...)
}

// Search ranks every chunk against vec and returns the k best. Equal
// scores keep insertion order.
func (s *Store) Search(vec []float32, k int) ([]Match, error) {
	if s.Len() == 0 {
		return nil, ErrEmptyStore
	}
	if k <= 0 {
		k = DefaultTopK
	}

	matches := make([]Match, len(s.chunks))
	for i, c := range s.chunks {
		score, err := cosine(vec, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", c.Index, err)
		}
		matches[i] = Match{Chunk: c, Score: score}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches[:min(k, len(matches))], nil
}

// Retrieve embeds query and returns the k most similar chunks joined by
// ContextSeparator.
func (s *Store) Retrieve(ctx context.Context, query string, k int, embedder genai.Embedder) (string, error) {
	if s.Len() == 0 {
		return "", ErrEmptyStore
	}

	vec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.Search(vec, k)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Chunk.Text
	}
	return strings.Join(texts, ContextSeparator), nil
}

// cosine returns the cosine similarity of a and b; a zero-norm vector
// scores 0.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
