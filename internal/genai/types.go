// Package genai talks to the model endpoints: the chat-completion server
// that writes answers, and the embedding providers used for retrieval.
//
// Architecture:
//   - Completion: any OpenAI-compatible server via github.com/openai/openai-go/v3
//   - Embeddings: OpenAI-compatible /embeddings, Gemini (google.golang.org/genai)
//     or a local Ollama server (github.com/ollama/ollama/api)
//
// Embedding calls are retried with backoff; completion calls are not.
package genai

import (
	"strings"
	"time"
)

// Provider represents an embedding provider.
type Provider string

const (
	// ProviderOpenAI is any OpenAI-compatible /embeddings endpoint.
	ProviderOpenAI Provider = "openai"
	// ProviderGemini represents Google's Gemini API (non-OpenAI-compatible).
	ProviderGemini Provider = "gemini"
	// ProviderOllama is a local Ollama server.
	ProviderOllama Provider = "ollama"
)

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// RetryConfig defines retry behavior for embedding calls.
// Uses AWS-recommended Full Jitter exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialDelay is the base delay before first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration
}

// DefaultEmbeddingRetry retries transient embedding failures three times.
func DefaultEmbeddingRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// Instruction prefixes expected by the E5 model family.
const (
	e5PassagePrefix = "passage: "
	e5QueryPrefix   = "query: "
)

// needsE5Prefix reports whether model is an E5 variant, which was trained
// with "passage: " / "query: " prefixes.
func needsE5Prefix(model string) bool {
	return strings.Contains(strings.ToLower(model), "e5-")
}
