package genai

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/garyellow/anan-assistant-go/internal/metrics"
	"github.com/garyellow/anan-assistant-go/internal/sentry"
)

// CompletionTemperature is the sampling temperature for every answer.
const CompletionTemperature = 0.7

// CompletionConfig configures a CompletionClient.
type CompletionConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	Fallback string
	Timeout  time.Duration
	Metrics  *metrics.Metrics
	// Options are appended to the client options; tests use this to swap
	// the HTTP client.
	Options []option.RequestOption
}

// CompletionClient sends one prompt to an OpenAI-compatible chat endpoint
// and always returns text: the model's answer or the fallback message.
type CompletionClient struct {
	client   openai.Client
	model    string
	fallback string
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewCompletionClient builds a client that never retries.
func NewCompletionClient(cfg CompletionConfig) *CompletionClient {
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	opts = append(opts, cfg.Options...)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &CompletionClient{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		fallback: cfg.Fallback,
		timeout:  timeout,
		metrics:  cfg.Metrics,
	}
}

// Fallback returns the message used when the endpoint fails.
func (c *CompletionClient) Fallback() string {
	return c.fallback
}

// Complete returns the first choice's content, or the fallback message and
// false on any failure. maxTokens <= 0 leaves the limit to the server.
func (c *CompletionClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, bool) {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(CompletionTemperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			status = "timeout"
		}
		c.fail(ctx, status, WrapError(err, ProviderOpenAI), start)
		return c.fallback, false
	}

	if len(resp.Choices) == 0 {
		c.fail(ctx, "empty", errors.New("completion returned no choices"), start)
		return c.fallback, false
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		c.fail(ctx, "empty", errors.New("completion returned empty content"), start)
		return c.fallback, false
	}

	c.metrics.RecordCompletion("success", time.Since(start).Seconds())
	slog.DebugContext(ctx, "Completion succeeded",
		"model", c.model,
		"max_tokens", maxTokens,
		"prompt_chars", len([]rune(prompt)),
		"answer_chars", len([]rune(content)),
		"duration_ms", time.Since(start).Milliseconds())
	return content, true
}

func (c *CompletionClient) fail(ctx context.Context, status string, err error, start time.Time) {
	c.metrics.RecordCompletion(status, time.Since(start).Seconds())
	slog.WarnContext(ctx, "Completion failed, using fallback message",
		"model", c.model,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err)
	if status == "error" {
		sentry.CaptureExceptionWithContext(ctx, err, map[string]string{
			"component": "completion",
			"model":     c.model,
		})
	}
}
