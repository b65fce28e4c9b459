package genai

import (
	"context"
	"sort"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type openAIBackend struct {
	client openai.Client
	name   string
}

func newOpenAIBackend(baseURL, apiKey, model string) *openAIBackend {
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &openAIBackend{client: client, name: model}
}

func (b *openAIBackend) provider() Provider { return ProviderOpenAI }
func (b *openAIBackend) model() string      { return b.name }

func (b *openAIBackend) embed(ctx context.Context, texts []string, _ bool) ([][]float32, error) {
	resp, err := b.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(b.name),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, err
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		out[i] = v
	}
	return out, nil
}
