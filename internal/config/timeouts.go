// Package config provides centralized timeout constants for the application.
//
// The completion endpoint is a self-hosted model on the campus HPC cluster;
// a single answer usually takes 5-20s. The school website is small and
// answers quickly, but sits behind a password form.
package config

import "time"

// HTTP server timeouts
const (
	// HTTPRead is the server read timeout. Requests are small JSON bodies.
	HTTPRead = 10 * time.Second

	// HTTPWrite must cover CompletionRequest plus serialization.
	HTTPWrite = 65 * time.Second

	// HTTPIdle is the keep-alive idle timeout.
	HTTPIdle = 120 * time.Second

	// WebhookProcessing bounds one LINE event, including the completion call.
	// LINE's loading animation lasts up to 60s.
	WebhookProcessing = 60 * time.Second
)

// Model timeouts
const (
	// CompletionRequest bounds one chat-completion call. On expiry the
	// caller receives the fallback message.
	CompletionRequest = 30 * time.Second

	// EmbeddingRequest bounds one embedding batch.
	EmbeddingRequest = 60 * time.Second
)

// Scraper timeouts
const (
	// ScraperRequest is the timeout for a single HTTP request to the school site.
	ScraperRequest = 15 * time.Second

	// ScraperRetryInitial is the initial delay before retrying a failed request.
	// Uses exponential backoff: 1s -> 2s -> 4s
	ScraperRetryInitial = 1 * time.Second

	// BulletinCacheTTL is how long a fetched class-change page is reused.
	BulletinCacheTTL = 10 * time.Minute
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// MetricsUpdateInterval is how often gauge metrics (history size) are refreshed.
	MetricsUpdateInterval = 5 * time.Minute

	// RateLimiterCleanupInterval is how often idle per-client limiters are removed.
	RateLimiterCleanupInterval = 5 * time.Minute

	// SnapshotUploadInterval is the default period between history uploads to R2.
	SnapshotUploadInterval = time.Hour

	// DocsReloadDebounce collapses bursts of file events into one reload.
	DocsReloadDebounce = 2 * time.Second

	// WarmupTimeout bounds building every topic store at startup.
	WarmupTimeout = 5 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)
