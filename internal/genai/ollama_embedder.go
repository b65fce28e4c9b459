package genai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

type ollamaBackend struct {
	client *api.Client
	name   string
}

// newOllamaBackend connects to host, or to OLLAMA_HOST / localhost:11434
// when host is empty.
func newOllamaBackend(host, model string, httpClient *http.Client) (*ollamaBackend, error) {
	base := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
		}
		base = u
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ollamaBackend{client: api.NewClient(base, httpClient), name: model}, nil
}

func (b *ollamaBackend) provider() Provider { return ProviderOllama }
func (b *ollamaBackend) model() string      { return b.name }

func (b *ollamaBackend) embed(ctx context.Context, texts []string, _ bool) ([][]float32, error) {
	resp, err := b.client.Embed(ctx, &api.EmbedRequest{
		Model: b.name,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
