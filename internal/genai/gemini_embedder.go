package genai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini task types; documents and queries land in the same space but are
// tuned for the asymmetric retrieval case.
const (
	geminiTaskDocument = "RETRIEVAL_DOCUMENT"
	geminiTaskQuery    = "RETRIEVAL_QUERY"
)

// geminiBatchLimit is the most contents one EmbedContent call accepts.
const geminiBatchLimit = 100

type geminiBackend struct {
	client *genai.Client
	name   string
}

func newGeminiBackend(ctx context.Context, apiKey, model string) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiBackend{client: client, name: model}, nil
}

func (b *geminiBackend) provider() Provider { return ProviderGemini }
func (b *geminiBackend) model() string      { return b.name }

func (b *geminiBackend) embed(ctx context.Context, texts []string, query bool) ([][]float32, error) {
	task := geminiTaskDocument
	if query {
		task = geminiTaskQuery
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchLimit {
		end := min(start+geminiBatchLimit, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}

		resp, err := b.client.Models.EmbedContent(ctx, b.name, contents, &genai.EmbedContentConfig{TaskType: task})
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Embeddings {
			if e == nil {
				out = append(out, nil)
				continue
			}
			out = append(out, e.Values)
		}
	}
	return out, nil
}
