// Package metrics defines the Prometheus metrics exported on /metrics.
// All Record* helpers are safe to call on a nil *Metrics, which the command
// line tools use to run the pipeline without a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Pipeline metrics
	QuestionsTotal          *prometheus.CounterVec
	PipelineDurationSeconds *prometheus.HistogramVec

	// Model metrics
	CompletionRequestsTotal   *prometheus.CounterVec
	CompletionDurationSeconds prometheus.Histogram
	EmbeddingRequestsTotal    *prometheus.CounterVec
	EmbeddingDurationSeconds  *prometheus.HistogramVec

	// Retrieval metrics
	RetrievalDurationSeconds *prometheus.HistogramVec
	StoreChunks              *prometheus.GaugeVec

	// Scraper metrics
	ScraperRequestsTotal   *prometheus.CounterVec
	ScraperDurationSeconds *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// History metrics
	HistoryRows prometheus.Gauge

	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Background job metrics
	JobRunsTotal       *prometheus.CounterVec
	JobDurationSeconds *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		QuestionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_questions_total",
				Help: "Total questions by intent and outcome",
			},
			[]string{"intent", "outcome"}, // outcome: answered, fallback, not_found, invalid, error
		),

		PipelineDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anan_pipeline_duration_seconds",
				Help:    "End-to-end question handling duration by intent",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"intent"},
		),

		CompletionRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_completion_requests_total",
				Help: "Total chat-completion calls by result",
			},
			[]string{"status"}, // status: success, error, timeout, empty
		),

		CompletionDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "anan_completion_duration_seconds",
				Help:    "Chat-completion call duration",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
			},
		),

		EmbeddingRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_embedding_requests_total",
				Help: "Total embedding calls by provider and result",
			},
			[]string{"provider", "status"},
		),

		EmbeddingDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anan_embedding_duration_seconds",
				Help:    "Embedding call duration by provider",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),

		RetrievalDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anan_retrieval_duration_seconds",
				Help:    "Context retrieval duration by topic, including the query embedding",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"topic"},
		),

		StoreChunks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "anan_store_chunks",
				Help: "Number of chunks in each built topic store",
			},
			[]string{"topic"},
		),

		ScraperRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_scraper_requests_total",
				Help: "Total number of scraper requests by module and status",
			},
			[]string{"module", "status"}, // status: success, error, not_found
		),

		ScraperDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anan_scraper_duration_seconds",
				Help:    "Scraper request duration in seconds by module",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"module"},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_cache_hits_total",
				Help: "Total number of cache hits by module",
			},
			[]string{"module"}, // module: bulletin, embeddings
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_cache_misses_total",
				Help: "Total number of cache misses by module",
			},
			[]string{"module"},
		),

		HistoryRows: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "anan_history_rows",
				Help: "Number of rows in the question history",
			},
		),

		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anan_webhook_duration_seconds",
				Help:    "LINE event processing duration in seconds by event type",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"event_type"},
		),

		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_webhook_requests_total",
				Help: "Total number of LINE events by event type and status",
			},
			[]string{"event_type", "status"},
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_http_errors_total",
				Help: "Total HTTP errors by type and route",
			},
			[]string{"error_type", "route"}, // error_type: bad_request, rate_limit, invalid_signature, internal
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: client, global
		),

		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_singleflight_dedup_total",
				Help: "Total number of requests that shared another caller's result",
			},
			[]string{"module"}, // module: rag, bulletin
		),

		JobRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anan_job_runs_total",
				Help: "Background job runs by job and status",
			},
			[]string{"job", "status"}, // job: warmup, docs_reload, snapshot_upload, metrics_refresh
		),

		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anan_job_duration_seconds",
				Help:    "Background job duration by job",
				Buckets: []float64{0.1, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"job"},
		),
	}
}

// RecordQuestion records one handled question.
func (m *Metrics) RecordQuestion(intent, outcome string, duration float64) {
	if m == nil {
		return
	}
	m.QuestionsTotal.WithLabelValues(intent, outcome).Inc()
	m.PipelineDurationSeconds.WithLabelValues(intent).Observe(duration)
}

// RecordCompletion records one chat-completion call.
func (m *Metrics) RecordCompletion(status string, duration float64) {
	if m == nil {
		return
	}
	m.CompletionRequestsTotal.WithLabelValues(status).Inc()
	m.CompletionDurationSeconds.Observe(duration)
}

// RecordEmbedding records one embedding call.
func (m *Metrics) RecordEmbedding(provider, status string, duration float64) {
	if m == nil {
		return
	}
	m.EmbeddingRequestsTotal.WithLabelValues(provider, status).Inc()
	m.EmbeddingDurationSeconds.WithLabelValues(provider).Observe(duration)
}

// RecordRetrieval records the duration of one retrieval.
func (m *Metrics) RecordRetrieval(topic string, duration float64) {
	if m == nil {
		return
	}
	m.RetrievalDurationSeconds.WithLabelValues(topic).Observe(duration)
}

// SetStoreChunks sets the chunk count of a topic store.
func (m *Metrics) SetStoreChunks(topic string, n int) {
	if m == nil {
		return
	}
	m.StoreChunks.WithLabelValues(topic).Set(float64(n))
}

// RecordScraperRequest records a scraper request with status
func (m *Metrics) RecordScraperRequest(module, status string, duration float64) {
	if m == nil {
		return
	}
	m.ScraperRequestsTotal.WithLabelValues(module, status).Inc()
	m.ScraperDurationSeconds.WithLabelValues(module).Observe(duration)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(module string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(module).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(module string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(module).Inc()
}

// SetHistoryRows sets the history size gauge.
func (m *Metrics) SetHistoryRows(n int) {
	if m == nil {
		return
	}
	m.HistoryRows.Set(float64(n))
}

// RecordWebhook records a webhook request
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	if m == nil {
		return
	}
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, route string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(errorType, route).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(module string) {
	if m == nil {
		return
	}
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}

// RecordJob records one background job run.
func (m *Metrics) RecordJob(job, status string, duration float64) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
	m.JobDurationSeconds.WithLabelValues(job).Observe(duration)
}
