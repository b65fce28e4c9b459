package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/garyellow/anan-assistant-go/internal/metrics"
)

// ErrEmptyEmbedding is returned when a provider answers without vectors or
// with a different number of vectors than inputs.
var ErrEmptyEmbedding = errors.New("genai: provider returned no embedding")

// Embedder turns text into vectors. Documents and queries are separate
// calls because some models expect different instructions for each.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Model identifies the vector space; vectors from different models
	// must never be compared.
	Model() string
}

// backend is the provider-specific single-attempt call.
type backend interface {
	embed(ctx context.Context, texts []string, query bool) ([][]float32, error)
	provider() Provider
	model() string
}

// instrumentedEmbedder adds prefixes, retry, a per-call timeout, logging
// and metrics around a backend.
type instrumentedEmbedder struct {
	b       backend
	retry   RetryConfig
	timeout time.Duration
	metrics *metrics.Metrics
	prefix  bool
}

func (e *instrumentedEmbedder) Model() string {
	return string(e.b.provider()) + ":" + e.b.model()
}

func (e *instrumentedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.call(ctx, e.withPrefix(texts, e5PassagePrefix), false)
}

func (e *instrumentedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("genai: empty query cannot be embedded")
	}
	vecs, err := e.call(ctx, e.withPrefix([]string{text}, e5QueryPrefix), true)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *instrumentedEmbedder) withPrefix(texts []string, prefix string) []string {
	if !e.prefix {
		return texts
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = prefix + t
	}
	return out
}

func (e *instrumentedEmbedder) call(ctx context.Context, texts []string, query bool) ([][]float32, error) {
	provider := e.b.provider()
	start := time.Now()

	var vecs [][]float32
	err := WithRetry(ctx, e.retry, func(attempt int, err error) {
		slog.WarnContext(ctx, "Embedding call failed, retrying",
			"provider", provider,
			"model", e.b.model(),
			"attempt", attempt,
			"error", err)
	}, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		out, err := e.b.embed(callCtx, texts, query)
		if err != nil {
			return WrapError(err, provider)
		}
		if len(out) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmptyEmbedding, len(out), len(texts))
		}
		for _, v := range out {
			if len(v) == 0 {
				return ErrEmptyEmbedding
			}
		}
		vecs = out
		return nil
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordEmbedding(provider.String(), status, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("embed %d texts with %s: %w", len(texts), e.Model(), err)
	}

	slog.DebugContext(ctx, "Embedding call completed",
		"provider", provider,
		"model", e.b.model(),
		"inputs", len(texts),
		"dimensions", len(vecs[0]),
		"duration_ms", time.Since(start).Milliseconds())
	return vecs, nil
}
