package genai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/garyellow/anan-assistant-go/internal/metrics"
)

// EmbedderConfig selects and configures an embedding provider.
type EmbedderConfig struct {
	Provider Provider
	Model    string
	// BaseURL and APIKey apply to the openai provider.
	BaseURL string
	APIKey  string
	// GeminiAPIKey applies to the gemini provider.
	GeminiAPIKey string
	// OllamaHost overrides OLLAMA_HOST for the ollama provider.
	OllamaHost string

	Timeout time.Duration
	Retry   RetryConfig
	Metrics *metrics.Metrics
}

// NewEmbedder builds the configured provider wrapped with retry, timeout
// and metrics.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (Embedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("genai: embedding model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultEmbeddingRetry()
	}

	var b backend
	switch cfg.Provider {
	case ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("genai: openai embedding provider needs an API key")
		}
		b = newOpenAIBackend(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("genai: gemini embedding provider needs an API key")
		}
		gb, err := newGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		b = gb
	case ProviderOllama:
		ob, err := newOllamaBackend(cfg.OllamaHost, cfg.Model, nil)
		if err != nil {
			return nil, err
		}
		b = ob
	default:
		return nil, fmt.Errorf("genai: unknown embedding provider %q", cfg.Provider)
	}

	slog.InfoContext(ctx, "Embedder configured",
		"provider", b.provider(),
		"model", cfg.Model)

	return &instrumentedEmbedder{
		b:       b,
		retry:   cfg.Retry,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		prefix:  needsE5Prefix(cfg.Model),
	}, nil
}
