// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "ANAN_PORT"
	EnvLogLevel        = "ANAN_LOG_LEVEL"
	EnvShutdownTimeout = "ANAN_SHUTDOWN_TIMEOUT"

	// Data
	EnvDataDir         = "ANAN_DATA_DIR"
	EnvDocsDir         = "ANAN_DOCS_DIR"
	EnvTimetableFile   = "ANAN_TIMETABLE_FILE"
	EnvTimetableYear   = "ANAN_TIMETABLE_YEAR"
	EnvIntentRulesFile = "ANAN_INTENT_RULES_FILE"
	EnvWatchDocs       = "ANAN_WATCH_DOCS"

	// Completion
	EnvLLMBaseURL         = "ANAN_LLM_BASE_URL"
	EnvLLMModel           = "ANAN_LLM_MODEL"
	EnvLLMAPIKey          = "ANAN_LLM_API_KEY"
	EnvLLMFallbackMessage = "ANAN_LLM_FALLBACK_MESSAGE"
	EnvCompletionTimeout  = "ANAN_COMPLETION_TIMEOUT"

	// Embedding
	EnvEmbeddingProvider = "ANAN_EMBEDDING_PROVIDER"
	EnvEmbeddingBaseURL  = "ANAN_EMBEDDING_BASE_URL"
	EnvEmbeddingModel    = "ANAN_EMBEDDING_MODEL"
	EnvEmbeddingAPIKey   = "ANAN_EMBEDDING_API_KEY"
	EnvEmbeddingTimeout  = "ANAN_EMBEDDING_TIMEOUT"
	EnvGeminiAPIKey      = "ANAN_GEMINI_API_KEY"
	EnvOllamaHost        = "ANAN_OLLAMA_HOST"

	// Retrieval and prompt
	EnvRetrievalTopK      = "ANAN_RETRIEVAL_TOP_K"
	EnvTimetableMaxTokens = "ANAN_TIMETABLE_MAX_TOKENS"
	EnvRulesMaxTokens     = "ANAN_RULES_MAX_TOKENS"
	EnvExtraPreambles     = "ANAN_EXTRA_PREAMBLES"

	// Bulletin
	EnvUpdatePassword    = "ANAN_UPDATE_PASSWORD"
	EnvBulletinBaseURL   = "ANAN_BULLETIN_BASE_URL"
	EnvBulletinCacheTTL  = "ANAN_BULLETIN_CACHE_TTL"
	EnvScraperTimeout    = "ANAN_SCRAPER_TIMEOUT"
	EnvScraperMaxRetries = "ANAN_SCRAPER_MAX_RETRIES"

	// History
	EnvHistoryListLimit = "ANAN_HISTORY_LIST_LIMIT"

	// LINE webhook (optional front end)
	EnvLineChannelAccessToken = "ANAN_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "ANAN_LINE_CHANNEL_SECRET"
	EnvWebhookTimeout         = "ANAN_WEBHOOK_TIMEOUT"

	// Rate Limits
	EnvGlobalRateRPS = "ANAN_GLOBAL_RATE_RPS"
	EnvAskRateBurst  = "ANAN_ASK_RATE_BURST"
	EnvAskRateRefill = "ANAN_ASK_RATE_REFILL"
	EnvAskDailyLimit = "ANAN_ASK_DAILY_LIMIT"

	// Operator auth for history deletes
	EnvAdminUsername = "ANAN_ADMIN_USERNAME"
	EnvAdminPassword = "ANAN_ADMIN_PASSWORD"

	// R2 Snapshot Feature
	EnvR2Enabled          = "ANAN_R2_ENABLED"
	EnvR2AccountID        = "ANAN_R2_ACCOUNT_ID"
	EnvR2AccessKeyID      = "ANAN_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey  = "ANAN_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName       = "ANAN_R2_BUCKET_NAME"
	EnvR2SnapshotKey      = "ANAN_R2_SNAPSHOT_KEY"
	EnvR2SnapshotInterval = "ANAN_R2_SNAPSHOT_INTERVAL"

	// Sentry Feature
	EnvSentryDSN              = "ANAN_SENTRY_DSN"
	EnvSentryEnvironment      = "ANAN_SENTRY_ENVIRONMENT"
	EnvSentryRelease          = "ANAN_SENTRY_RELEASE"
	EnvSentrySampleRate       = "ANAN_SENTRY_SAMPLE_RATE"
	EnvSentryTracesSampleRate = "ANAN_SENTRY_TRACES_SAMPLE_RATE"

	// Better Stack Feature
	EnvBetterStackToken    = "ANAN_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "ANAN_BETTERSTACK_ENDPOINT"

	// Metrics Auth Feature
	EnvMetricsAuthEnabled = "ANAN_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "ANAN_METRICS_USERNAME"
	EnvMetricsPassword    = "ANAN_METRICS_PASSWORD"
)
