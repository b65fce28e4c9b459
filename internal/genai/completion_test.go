package genai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFallback = "fallback answer"

func chatResponse(content string) string {
	body := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "test-model",
		"choices": []any{},
	}
	if content != "\x00" {
		body["choices"] = []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}}
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func newTestCompletion(t *testing.T, h http.HandlerFunc, timeout time.Duration) *CompletionClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewCompletionClient(CompletionConfig{
		BaseURL:  srv.URL + "/v1/",
		APIKey:   "test-key",
		Model:    "test-model",
		Fallback: testFallback,
		Timeout:  timeout,
	})
}

func TestComplete_Success(t *testing.T) {
	var got map[string]any
	c := newTestCompletion(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse("答えです"))
	}, time.Second)

	answer, ok := c.Complete(t.Context(), "質問", 400)
	assert.True(t, ok)
	assert.Equal(t, "答えです", answer)

	assert.Equal(t, "test-model", got["model"])
	assert.InDelta(t, 0.7, got["temperature"], 1e-9)
	assert.InDelta(t, 400, got["max_tokens"], 0)
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "質問", msg["content"])
}

func TestComplete_FallbackCases(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
		}},
		{"no choices", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, chatResponse("\x00"))
		}},
		{"empty content", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, chatResponse("  "))
		}},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, "{not json")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCompletion(t, tt.handler, time.Second)
			assertFallback(t, c, 100)
		})
	}
}

func TestComplete_NoRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestCompletion(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}, time.Second)

	assertFallback(t, c, 100)
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestCompletion(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	start := time.Now()
	assertFallback(t, c, 100)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestComplete_Unreachable(t *testing.T) {
	c := NewCompletionClient(CompletionConfig{
		BaseURL:  "http://127.0.0.1:1/v1/",
		APIKey:   "k",
		Model:    "m",
		Fallback: testFallback,
		Timeout:  time.Second,
	})
	assertFallback(t, c, 10)
	assert.Equal(t, testFallback, c.Fallback())
}

func assertFallback(t *testing.T, c *CompletionClient, maxTokens int) {
	t.Helper()
	answer, ok := c.Complete(t.Context(), "q", maxTokens)
	assert.False(t, ok)
	assert.Equal(t, testFallback, answer)
}
