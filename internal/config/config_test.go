package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every ANAN_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "ANAN_") {
			t.Setenv(key, "")
		}
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLLMAPIKey, "test_key")
	t.Setenv(EnvUpdatePassword, "secret")
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLMAPIKey != "test_key" {
		t.Errorf("Expected key 'test_key', got '%s'", cfg.LLMAPIKey)
	}
	if cfg.EmbeddingAPIKey != "test_key" {
		t.Errorf("Embedding key should fall back to LLM key, got '%s'", cfg.EmbeddingAPIKey)
	}
	if cfg.Port != "10000" {
		t.Errorf("Expected default port '10000', got '%s'", cfg.Port)
	}
	if cfg.LLMBaseURL != DefaultLLMBaseURL {
		t.Errorf("LLMBaseURL = %q, want %q", cfg.LLMBaseURL, DefaultLLMBaseURL)
	}
	if cfg.LLMModel != DefaultLLMModel {
		t.Errorf("LLMModel = %q, want %q", cfg.LLMModel, DefaultLLMModel)
	}
	if cfg.RetrievalTopK != 5 {
		t.Errorf("RetrievalTopK = %d, want 5", cfg.RetrievalTopK)
	}
	if cfg.TimetableMaxTokens != 400 || cfg.RulesMaxTokens != 600 {
		t.Errorf("budgets = %d/%d, want 400/600", cfg.TimetableMaxTokens, cfg.RulesMaxTokens)
	}
	if cfg.CompletionTimeout != 30*time.Second {
		t.Errorf("CompletionTimeout = %v, want 30s", cfg.CompletionTimeout)
	}
	if cfg.LLMFallbackMessage != DefaultFallbackMessage {
		t.Errorf("LLMFallbackMessage = %q", cfg.LLMFallbackMessage)
	}
	if cfg.TimetableYear != "2025" {
		t.Errorf("TimetableYear = %q, want 2025", cfg.TimetableYear)
	}
	if cfg.LINEEnabled() {
		t.Error("LINE should be disabled without credentials")
	}
}

func TestLoadForMode(t *testing.T) {
	tests := []struct {
		name        string
		mode        ValidationMode
		env         map[string]string
		wantErr     bool
		errContains []string
	}{
		{
			name: "server mode - valid config",
			mode: ServerMode,
			env:  map[string]string{EnvLLMAPIKey: "k", EnvUpdatePassword: "p"},
		},
		{
			name:        "server mode - missing secrets reported together",
			mode:        ServerMode,
			env:         map[string]string{},
			wantErr:     true,
			errContains: []string{EnvLLMAPIKey, EnvUpdatePassword},
		},
		{
			name: "ask mode - bulletin password optional",
			mode: AskMode,
			env:  map[string]string{EnvLLMAPIKey: "k"},
		},
		{
			name: "warmup mode - ollama needs no key",
			mode: WarmupMode,
			env:  map[string]string{EnvEmbeddingProvider: "ollama"},
		},
		{
			name:        "warmup mode - gemini needs its key",
			mode:        WarmupMode,
			env:         map[string]string{EnvEmbeddingProvider: "gemini"},
			wantErr:     true,
			errContains: []string{EnvGeminiAPIKey},
		},
		{
			name: "verify mode - no credentials required",
			mode: VerifyMode,
			env:  map[string]string{},
		},
		{
			name:        "unknown embedding provider",
			mode:        WarmupMode,
			env:         map[string]string{EnvEmbeddingProvider: "bert"},
			wantErr:     true,
			errContains: []string{EnvEmbeddingProvider},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvDataDir, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadForMode(tt.mode)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadForMode() error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, s := range tt.errContains {
				if !strings.Contains(err.Error(), s) {
					t.Errorf("error %q should mention %s", err, s)
				}
			}
		})
	}
}

func validServerConfig() *Config {
	return &Config{
		Port:               "10000",
		DataDir:            "/tmp/data",
		LLMBaseURL:         DefaultLLMBaseURL,
		LLMAPIKey:          "k",
		CompletionTimeout:  time.Second,
		EmbeddingProvider:  EmbeddingProviderOpenAI,
		EmbeddingBaseURL:   DefaultLLMBaseURL,
		EmbeddingModel:     DefaultEmbeddingModel,
		EmbeddingAPIKey:    "k",
		RetrievalTopK:      5,
		TimetableMaxTokens: 400,
		RulesMaxTokens:     600,
		UpdatePassword:     "p",
		ScraperTimeout:     time.Second,
		HistoryListLimit:   50,
		GlobalRateLimitRPS: 10,
		AskRateBurst:       5,
		AskRateRefill:      0.1,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad base url", func(c *Config) { c.LLMBaseURL = "hpc04:8000" }, EnvLLMBaseURL},
		{"zero top k", func(c *Config) { c.RetrievalTopK = 0 }, EnvRetrievalTopK},
		{"zero budget", func(c *Config) { c.RulesMaxTokens = 0 }, EnvRulesMaxTokens},
		{"negative retries", func(c *Config) { c.ScraperMaxRetries = -1 }, EnvScraperMaxRetries},
		{"half LINE credentials", func(c *Config) { c.LineChannelToken = "t" }, EnvLineChannelSecret},
		{"metrics auth without password", func(c *Config) { c.MetricsAuthEnabled = true }, EnvMetricsPassword},
		{"valid extra preamble", func(c *Config) { c.ExtraPreambles = []string{`^えっと.*`} }, ""},
		{"broken extra preamble", func(c *Config) { c.ExtraPreambles = []string{"えっと("} }, EnvExtraPreambles},
		{"r2 without bucket", func(c *Config) {
			c.R2Enabled = true
			c.R2AccountID = "a"
			c.R2AccessKeyID = "b"
			c.R2SecretAccessKey = "c"
			c.R2SnapshotInterval = time.Hour
		}, EnvR2BucketName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validServerConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data", R2AccountID: "acct"}
	if got := cfg.HistoryPath(); got != "/data/history.db" {
		t.Errorf("HistoryPath() = %q", got)
	}
	if got := cfg.EmbeddingCacheDir(); got != "/data/embeddings" {
		t.Errorf("EmbeddingCacheDir() = %q", got)
	}
	if got := cfg.R2Endpoint(); got != "https://acct.r2.cloudflarestorage.com" {
		t.Errorf("R2Endpoint() = %q", got)
	}
}

func TestGetDurationEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"valid", "45s", 45 * time.Second},
		{"invalid falls back", "soon", time.Minute},
		{"empty falls back", "", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANAN_TEST_DURATION", tt.value)
			if got := getDurationEnv("ANAN_TEST_DURATION", time.Minute); got != tt.want {
				t.Errorf("getDurationEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("ANAN_TEST_BOOL", "false")
	if getBoolEnv("ANAN_TEST_BOOL", true) {
		t.Error("expected false")
	}
	t.Setenv("ANAN_TEST_BOOL", "maybe")
	if !getBoolEnv("ANAN_TEST_BOOL", true) {
		t.Error("invalid value should fall back to default")
	}
}

func TestGetListEnv(t *testing.T) {
	t.Setenv("ANAN_TEST_LIST", " ^以上です, ,^ご質問ありがとう ")
	got := getListEnv("ANAN_TEST_LIST", nil)
	if len(got) != 2 || got[0] != "^以上です" || got[1] != "^ご質問ありがとう" {
		t.Errorf("getListEnv() = %q", got)
	}

	t.Setenv("ANAN_TEST_LIST", " , ")
	if got := getListEnv("ANAN_TEST_LIST", []string{"d"}); len(got) != 1 || got[0] != "d" {
		t.Errorf("getListEnv() blank = %q, want default", got)
	}
}
