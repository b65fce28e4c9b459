package config

import (
	"testing"
	"time"
)

func TestTimeoutRelationships(t *testing.T) {
	tests := []struct {
		name    string
		smaller time.Duration
		larger  time.Duration
	}{
		{"completion fits in HTTP write", CompletionRequest, HTTPWrite},
		{"completion fits in webhook processing", CompletionRequest, WebhookProcessing},
		{"scraper request fits in HTTP write", ScraperRequest, HTTPWrite},
		{"retry delay below request timeout", ScraperRetryInitial, ScraperRequest},
		{"read below idle", HTTPRead, HTTPIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.smaller >= tt.larger {
				t.Errorf("%v should be less than %v", tt.smaller, tt.larger)
			}
		})
	}
}

func TestTimeoutsPositive(t *testing.T) {
	all := map[string]time.Duration{
		"BulletinCacheTTL":           BulletinCacheTTL,
		"DatabaseBusyTimeout":        DatabaseBusyTimeout,
		"DatabaseConnMaxLifetime":    DatabaseConnMaxLifetime,
		"MetricsUpdateInterval":      MetricsUpdateInterval,
		"RateLimiterCleanupInterval": RateLimiterCleanupInterval,
		"SnapshotUploadInterval":     SnapshotUploadInterval,
		"DocsReloadDebounce":         DocsReloadDebounce,
		"WarmupTimeout":              WarmupTimeout,
		"GracefulShutdown":           GracefulShutdown,
		"EmbeddingRequest":           EmbeddingRequest,
	}
	for name, d := range all {
		if d <= 0 {
			t.Errorf("%s = %v, want positive", name, d)
		}
	}
}
