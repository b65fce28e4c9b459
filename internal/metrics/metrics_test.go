package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.QuestionsTotal == nil || m.CompletionRequestsTotal == nil || m.EmbeddingRequestsTotal == nil {
		t.Error("model metrics not initialized")
	}
	if m.StoreChunks == nil || m.HistoryRows == nil || m.JobRunsTotal == nil {
		t.Error("gauge or job metrics not initialized")
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Registering twice on one registry would panic; two registries must not.
	_ = New(prometheus.NewRegistry())
	_ = New(prometheus.NewRegistry())
}

func TestRecordQuestion(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordQuestion("timetable", "answered", 1.2)
	m.RecordQuestion("timetable", "answered", 0.8)
	m.RecordQuestion("cycle", "fallback", 30)

	if got := testutil.ToFloat64(m.QuestionsTotal.WithLabelValues("timetable", "answered")); got != 2 {
		t.Errorf("timetable/answered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.QuestionsTotal.WithLabelValues("cycle", "fallback")); got != 1 {
		t.Errorf("cycle/fallback = %v, want 1", got)
	}
}

func TestRecordCompletion(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordCompletion("success", 3)
	m.RecordCompletion("timeout", 30)

	if got := testutil.ToFloat64(m.CompletionRequestsTotal.WithLabelValues("timeout")); got != 1 {
		t.Errorf("timeout = %v, want 1", got)
	}
}

func TestGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetStoreChunks("domitory", 12)
	m.SetStoreChunks("domitory", 14)
	m.SetHistoryRows(7)

	if got := testutil.ToFloat64(m.StoreChunks.WithLabelValues("domitory")); got != 14 {
		t.Errorf("StoreChunks = %v, want 14", got)
	}
	if got := testutil.ToFloat64(m.HistoryRows); got != 7 {
		t.Errorf("HistoryRows = %v, want 7", got)
	}
}

func TestCountersByLabel(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordScraperRequest("bulletin", "success", 0.4)
	m.RecordEmbedding("openai", "error", 1)
	m.RecordCacheHit("bulletin")
	m.RecordCacheMiss("embeddings")
	m.RecordRateLimiterDrop("client")
	m.RecordSingleflightDedup("rag")
	m.RecordWebhook("message", "success", 2)
	m.RecordHTTPError("rate_limit", "/api/ask")
	m.RecordJob("warmup", "success", 12)
	m.RecordRetrieval("cycle", 0.2)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"scraper", m.ScraperRequestsTotal.WithLabelValues("bulletin", "success"), 1},
		{"embedding", m.EmbeddingRequestsTotal.WithLabelValues("openai", "error"), 1},
		{"cache hit", m.CacheHitsTotal.WithLabelValues("bulletin"), 1},
		{"cache miss", m.CacheMissesTotal.WithLabelValues("embeddings"), 1},
		{"drop", m.RateLimiterDropped.WithLabelValues("client"), 1},
		{"dedup", m.SingleflightDedupTotal.WithLabelValues("rag"), 1},
		{"webhook", m.WebhookRequestsTotal.WithLabelValues("message", "success"), 1},
		{"http error", m.HTTPErrorsTotal.WithLabelValues("rate_limit", "/api/ask"), 1},
		{"job", m.JobRunsTotal.WithLabelValues("warmup", "success"), 1},
	}
	for _, tt := range checks {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	// None of these may panic.
	m.RecordQuestion("other", "answered", 1)
	m.RecordCompletion("success", 1)
	m.RecordEmbedding("gemini", "success", 1)
	m.RecordRetrieval("clab", 1)
	m.SetStoreChunks("clab", 1)
	m.RecordScraperRequest("bulletin", "error", 1)
	m.RecordCacheHit("bulletin")
	m.RecordCacheMiss("bulletin")
	m.SetHistoryRows(1)
	m.RecordWebhook("message", "error", 1)
	m.RecordHTTPError("internal", "/")
	m.RecordRateLimiterDrop("global")
	m.RecordSingleflightDedup("bulletin")
	m.RecordJob("docs_reload", "error", 1)
}
