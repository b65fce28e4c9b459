// Package config provides application configuration management.
// It loads settings from environment variables (optionally via a .env file)
// and provides defaults for the server, the command line tools, timeouts
// and the optional integrations.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/garyellow/anan-assistant-go/internal/sanitize"
)

// ValidationMode selects which settings are mandatory.
type ValidationMode int

const (
	// ServerMode needs the completion key and the bulletin password.
	ServerMode ValidationMode = iota
	// AskMode is the command line tool; the bulletin password is only
	// needed when the bulletin is requested.
	AskMode
	// WarmupMode only builds embeddings, so no completion key is required.
	WarmupMode
	// VerifyMode checks data files and needs no credentials at all.
	VerifyMode
)

// Embedding providers.
const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderGemini = "gemini"
	EmbeddingProviderOllama = "ollama"
)

// Default values that callers and tests refer to.
const (
	DefaultLLMBaseURL      = "http://hpc04.anan-nct.ac.jp:8000/v1"
	DefaultLLMModel        = "openai/gpt-oss-120b"
	DefaultEmbeddingModel  = "intfloat/multilingual-e5-small"
	DefaultGeminiEmbedding = "gemini-embedding-001"
	DefaultFallbackMessage = "AIモデルへの問い合わせ中にエラーが発生しました。"
	DefaultBulletinBaseURL = "https://www.anan-nct.ac.jp"
	DefaultTimetableYear   = "2025"
	DefaultTopK            = 5
	DefaultTimetableTokens = 400
	DefaultRulesTokens     = 600
	DefaultHistoryLimit    = 50
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Data Configuration
	DataDir         string // history database and embedding cache
	DocsDir         string // {topic}.txt reference documents
	TimetableFile   string
	TimetableYear   string
	IntentRulesFile string // empty = embedded default rules
	WatchDocs       bool   // reload topic stores when DocsDir changes

	// Completion
	LLMBaseURL         string
	LLMModel           string
	LLMAPIKey          string
	LLMFallbackMessage string
	CompletionTimeout  time.Duration

	// Embedding
	EmbeddingProvider string
	EmbeddingBaseURL  string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbeddingTimeout  time.Duration
	GeminiAPIKey      string
	OllamaHost        string

	// Retrieval and prompt budgets
	RetrievalTopK      int
	TimetableMaxTokens int
	RulesMaxTokens     int

	// ExtraPreambles are regexps of answer openers stripped in addition to
	// the built-in table. Each is anchored at the start of a line.
	ExtraPreambles []string

	// Bulletin scraper
	UpdatePassword    string
	BulletinBaseURL   string
	BulletinCacheTTL  time.Duration
	ScraperTimeout    time.Duration
	ScraperMaxRetries int

	// History
	HistoryListLimit int

	// LINE webhook, enabled when both credentials are set
	LineChannelToken  string
	LineChannelSecret string
	WebhookTimeout    time.Duration

	// Rate limits for /api/ask (token bucket per client)
	GlobalRateLimitRPS float64
	AskRateBurst       float64
	AskRateRefill      float64 // tokens per second
	AskDailyLimit      int     // rolling 24h cap per client, 0 disables

	// Operator credentials for history deletes (empty password = deletes disabled)
	AdminUsername string
	AdminPassword string

	// R2 snapshot of the history database
	R2Enabled          bool
	R2AccountID        string
	R2AccessKeyID      string
	R2SecretAccessKey  string
	R2BucketName       string
	R2SnapshotKey      string
	R2SnapshotInterval time.Duration

	// Sentry (enabled when DSN is set)
	SentryDSN              string
	SentryEnvironment      string
	SentryRelease          string
	SentrySampleRate       float64
	SentryTracesSampleRate float64

	// Better Stack (enabled when token is set)
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string
}

// Load reads configuration for server mode.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration from environment variables and validates
// it for the given mode. It attempts to load a .env file first.
func LoadForMode(mode ValidationMode) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := loadFromEnv()
	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func loadFromEnv() *Config {
	dataDir := getEnv(EnvDataDir, getDefaultDataDir())
	llmKey := getEnv(EnvLLMAPIKey, "")

	provider := strings.ToLower(getEnv(EnvEmbeddingProvider, EmbeddingProviderOpenAI))
	defaultEmbeddingModel := DefaultEmbeddingModel
	if provider == EmbeddingProviderGemini {
		defaultEmbeddingModel = DefaultGeminiEmbedding
	}
	llmBaseURL := getEnv(EnvLLMBaseURL, DefaultLLMBaseURL)

	return &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),

		DataDir:         dataDir,
		DocsDir:         getEnv(EnvDocsDir, filepath.Join(dataDir, "docs")),
		TimetableFile:   getEnv(EnvTimetableFile, filepath.Join(dataDir, "timetable.json")),
		TimetableYear:   getEnv(EnvTimetableYear, DefaultTimetableYear),
		IntentRulesFile: getEnv(EnvIntentRulesFile, ""),
		WatchDocs:       getBoolEnv(EnvWatchDocs, true),

		LLMBaseURL:         llmBaseURL,
		LLMModel:           getEnv(EnvLLMModel, DefaultLLMModel),
		LLMAPIKey:          llmKey,
		LLMFallbackMessage: getEnv(EnvLLMFallbackMessage, DefaultFallbackMessage),
		CompletionTimeout:  getDurationEnv(EnvCompletionTimeout, CompletionRequest),

		EmbeddingProvider: provider,
		EmbeddingBaseURL:  getEnv(EnvEmbeddingBaseURL, llmBaseURL),
		EmbeddingModel:    getEnv(EnvEmbeddingModel, defaultEmbeddingModel),
		EmbeddingAPIKey:   getEnv(EnvEmbeddingAPIKey, llmKey),
		EmbeddingTimeout:  getDurationEnv(EnvEmbeddingTimeout, EmbeddingRequest),
		GeminiAPIKey:      getEnv(EnvGeminiAPIKey, ""),
		OllamaHost:        getEnv(EnvOllamaHost, ""),

		RetrievalTopK:      getIntEnv(EnvRetrievalTopK, DefaultTopK),
		TimetableMaxTokens: getIntEnv(EnvTimetableMaxTokens, DefaultTimetableTokens),
		RulesMaxTokens:     getIntEnv(EnvRulesMaxTokens, DefaultRulesTokens),
		ExtraPreambles:     getListEnv(EnvExtraPreambles, nil),

		UpdatePassword:    getEnv(EnvUpdatePassword, ""),
		BulletinBaseURL:   strings.TrimRight(getEnv(EnvBulletinBaseURL, DefaultBulletinBaseURL), "/"),
		BulletinCacheTTL:  getDurationEnv(EnvBulletinCacheTTL, BulletinCacheTTL),
		ScraperTimeout:    getDurationEnv(EnvScraperTimeout, ScraperRequest),
		ScraperMaxRetries: getIntEnv(EnvScraperMaxRetries, 3),

		HistoryListLimit: getIntEnv(EnvHistoryListLimit, DefaultHistoryLimit),

		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),
		WebhookTimeout:    getDurationEnv(EnvWebhookTimeout, WebhookProcessing),

		GlobalRateLimitRPS: getFloatEnv(EnvGlobalRateRPS, 20),
		AskRateBurst:       getFloatEnv(EnvAskRateBurst, 5),
		AskRateRefill:      getFloatEnv(EnvAskRateRefill, 0.1), // 1 per 10s
		AskDailyLimit:      getIntEnv(EnvAskDailyLimit, 200),

		AdminUsername: getEnv(EnvAdminUsername, "admin"),
		AdminPassword: getEnv(EnvAdminPassword, ""),

		R2Enabled:          getBoolEnv(EnvR2Enabled, false),
		R2AccountID:        getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:      getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey:  getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:       getEnv(EnvR2BucketName, ""),
		R2SnapshotKey:      getEnv(EnvR2SnapshotKey, "snapshots/history.db.zst"),
		R2SnapshotInterval: getDurationEnv(EnvR2SnapshotInterval, SnapshotUploadInterval),

		SentryDSN:              getEnv(EnvSentryDSN, ""),
		SentryEnvironment:      getEnv(EnvSentryEnvironment, "production"),
		SentryRelease:          getEnv(EnvSentryRelease, ""),
		SentrySampleRate:       getFloatEnv(EnvSentrySampleRate, 1.0),
		SentryTracesSampleRate: getFloatEnv(EnvSentryTracesSampleRate, 0.0),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),
	}
}

// Validate checks the configuration for server mode.
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode collects every problem into a single joined error.
func (c *Config) ValidateForMode(mode ValidationMode) error {
	var errs []error

	needsLLM := mode == ServerMode || mode == AskMode
	if needsLLM && c.LLMAPIKey == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvLLMAPIKey))
	}
	if mode == ServerMode && c.UpdatePassword == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvUpdatePassword))
	}
	if mode == ServerMode && c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}

	if needsLLM {
		if err := validateURL(EnvLLMBaseURL, c.LLMBaseURL); err != nil {
			errs = append(errs, err)
		}
		if c.CompletionTimeout <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvCompletionTimeout, c.CompletionTimeout))
		}
	}

	if mode != VerifyMode {
		errs = append(errs, c.validateEmbedding()...)
	}

	if c.RetrievalTopK <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvRetrievalTopK, c.RetrievalTopK))
	}
	if c.TimetableMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvTimetableMaxTokens, c.TimetableMaxTokens))
	}
	if c.RulesMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvRulesMaxTokens, c.RulesMaxTokens))
	}
	if c.BulletinCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvBulletinCacheTTL, c.BulletinCacheTTL))
	}
	if c.ScraperTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvScraperTimeout, c.ScraperTimeout))
	}
	if c.ScraperMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvScraperMaxRetries, c.ScraperMaxRetries))
	}
	for _, p := range c.ExtraPreambles {
		if _, err := sanitize.CompilePreamble(p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvExtraPreambles, err))
		}
	}
	if c.HistoryListLimit <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvHistoryListLimit, c.HistoryListLimit))
	}

	if mode == ServerMode {
		if (c.LineChannelToken == "") != (c.LineChannelSecret == "") {
			errs = append(errs, fmt.Errorf("%s and %s must be set together", EnvLineChannelAccessToken, EnvLineChannelSecret))
		}
		if c.AskRateBurst <= 0 || c.AskRateRefill <= 0 {
			errs = append(errs, fmt.Errorf("%s and %s must be positive", EnvAskRateBurst, EnvAskRateRefill))
		}
		if c.AskDailyLimit < 0 {
			errs = append(errs, fmt.Errorf("%s cannot be negative, got %d", EnvAskDailyLimit, c.AskDailyLimit))
		}
		if c.GlobalRateLimitRPS <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvGlobalRateRPS, c.GlobalRateLimitRPS))
		}
		if c.MetricsAuthEnabled && c.MetricsPassword == "" {
			errs = append(errs, fmt.Errorf("%s is required when %s is true", EnvMetricsPassword, EnvMetricsAuthEnabled))
		}
		if c.R2Enabled {
			errs = append(errs, c.validateR2()...)
		}
	}

	return errors.Join(errs...)
}

func (c *Config) validateEmbedding() []error {
	var errs []error
	switch c.EmbeddingProvider {
	case EmbeddingProviderOpenAI:
		if c.EmbeddingAPIKey == "" {
			errs = append(errs, fmt.Errorf("%s (or %s) is required for the openai embedding provider", EnvEmbeddingAPIKey, EnvLLMAPIKey))
		}
		if err := validateURL(EnvEmbeddingBaseURL, c.EmbeddingBaseURL); err != nil {
			errs = append(errs, err)
		}
	case EmbeddingProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, fmt.Errorf("%s is required for the gemini embedding provider", EnvGeminiAPIKey))
		}
	case EmbeddingProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("%s must be one of openai, gemini, ollama; got %q", EnvEmbeddingProvider, c.EmbeddingProvider))
	}
	if c.EmbeddingModel == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvEmbeddingModel))
	}
	return errs
}

func (c *Config) validateR2() []error {
	var errs []error
	required := map[string]string{
		EnvR2AccountID:       c.R2AccountID,
		EnvR2AccessKeyID:     c.R2AccessKeyID,
		EnvR2SecretAccessKey: c.R2SecretAccessKey,
		EnvR2BucketName:      c.R2BucketName,
	}
	for _, key := range []string{EnvR2AccountID, EnvR2AccessKeyID, EnvR2SecretAccessKey, EnvR2BucketName} {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s is required when %s is true", key, EnvR2Enabled))
		}
	}
	if c.R2SnapshotInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvR2SnapshotInterval, c.R2SnapshotInterval))
	}
	return errs
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}

// LINEEnabled reports whether the LINE webhook front end is configured.
func (c *Config) LINEEnabled() bool {
	return c.LineChannelToken != "" && c.LineChannelSecret != ""
}

// SentryEnabled reports whether error reporting is configured.
func (c *Config) SentryEnabled() bool {
	return c.SentryDSN != ""
}

// HistoryPath returns the full path to the SQLite history database
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// EmbeddingCacheDir returns the directory holding cached topic embeddings.
func (c *Config) EmbeddingCacheDir() string {
	return filepath.Join(c.DataDir, "embeddings")
}

// R2Endpoint returns the S3-compatible endpoint of the configured account.
func (c *Config) R2Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv accepts anything strconv.ParseBool does.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping empty items.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}
