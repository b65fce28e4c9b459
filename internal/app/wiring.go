package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garyellow/anan-assistant-go/internal/assistant"
	"github.com/garyellow/anan-assistant-go/internal/config"
	"github.com/garyellow/anan-assistant-go/internal/genai"
	"github.com/garyellow/anan-assistant-go/internal/intent"
	"github.com/garyellow/anan-assistant-go/internal/metrics"
	"github.com/garyellow/anan-assistant-go/internal/prompt"
	"github.com/garyellow/anan-assistant-go/internal/rag"
	"github.com/garyellow/anan-assistant-go/internal/sanitize"
	"github.com/garyellow/anan-assistant-go/internal/scraper"
	"github.com/garyellow/anan-assistant-go/internal/scraper/anan"
	"github.com/garyellow/anan-assistant-go/internal/timetable"
)

// The constructors below are shared by the server and the command line
// tools so every entry point wires the pipeline the same way.

// NewLibrary builds the configured embedder and the per-topic store library.
func NewLibrary(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*rag.Library, error) {
	embedder, err := genai.NewEmbedder(ctx, genai.EmbedderConfig{
		Provider:     genai.Provider(cfg.EmbeddingProvider),
		Model:        cfg.EmbeddingModel,
		BaseURL:      cfg.EmbeddingBaseURL,
		APIKey:       cfg.EmbeddingAPIKey,
		GeminiAPIKey: cfg.GeminiAPIKey,
		OllamaHost:   cfg.OllamaHost,
		Timeout:      cfg.EmbeddingTimeout,
		Metrics:      m,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	return rag.NewLibrary(rag.LibraryConfig{
		DocsDir:  cfg.DocsDir,
		CacheDir: cfg.EmbeddingCacheDir(),
		Embedder: embedder,
		TopK:     cfg.RetrievalTopK,
		Metrics:  m,
	}), nil
}

// NewClassifier loads the intent rules file, or the embedded defaults when
// none is configured.
func NewClassifier(cfg *config.Config) (*intent.Classifier, error) {
	if cfg.IntentRulesFile == "" {
		rules, err := intent.DefaultRules()
		if err != nil {
			return nil, fmt.Errorf("default intent rules: %w", err)
		}
		return intent.NewClassifier(rules), nil
	}

	rules, err := intent.LoadRulesFile(cfg.IntentRulesFile)
	if err != nil {
		return nil, fmt.Errorf("intent rules: %w", err)
	}
	return intent.NewClassifier(rules), nil
}

// TopicNames lists the topics that have reference documents.
func TopicNames(c *intent.Classifier) []string {
	labels := c.Topics()
	topics := make([]string, 0, len(labels))
	for _, l := range labels {
		topics = append(topics, string(l))
	}
	return topics
}

// NewAssistant wires the question pipeline around lib.
func NewAssistant(ctx context.Context, cfg *config.Config, classifier *intent.Classifier, lib *rag.Library, m *metrics.Metrics) (*assistant.Assistant, error) {
	table, err := timetable.LoadTableFile(cfg.TimetableFile)
	if err != nil {
		return nil, fmt.Errorf("timetable: %w", err)
	}
	if table.Len() == 0 {
		slog.WarnContext(ctx, "Timetable is empty; timetable questions will report missing schedules",
			"path", cfg.TimetableFile)
	}

	sanitizeOpts, err := sanitize.WithExtraPreambles(cfg.ExtraPreambles...)
	if err != nil {
		return nil, fmt.Errorf("sanitize: %w", err)
	}

	completion := genai.NewCompletionClient(genai.CompletionConfig{
		BaseURL:  cfg.LLMBaseURL,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		Fallback: cfg.LLMFallbackMessage,
		Timeout:  cfg.CompletionTimeout,
		Metrics:  m,
	})

	return assistant.New(assistant.Config{
		Classifier: classifier,
		Resolver:   timetable.NewResolver(table, cfg.TimetableYear),
		Retriever:  lib,
		Completer:  completion,
		Budgets: prompt.Budgets{
			Timetable: cfg.TimetableMaxTokens,
			Rules:     cfg.RulesMaxTokens,
		},
		Sanitize: sanitizeOpts,
		Fallback: cfg.LLMFallbackMessage,
		Metrics:  m,
	}), nil
}

// NewBulletin builds the class-change scraper.
func NewBulletin(cfg *config.Config, m *metrics.Metrics) (*anan.Bulletin, error) {
	client := scraper.NewClient(cfg.ScraperTimeout, cfg.ScraperMaxRetries,
		scraper.WithRetryDelay(config.ScraperRetryInitial))

	b, err := anan.New(anan.Config{
		BaseURL:  cfg.BulletinBaseURL,
		Password: cfg.UpdatePassword,
		CacheTTL: cfg.BulletinCacheTTL,
		Client:   client,
		Metrics:  m,
	})
	if err != nil {
		return nil, fmt.Errorf("bulletin: %w", err)
	}
	return b, nil
}
