// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/garyellow/anan-assistant-go/internal/assistant"
	"github.com/garyellow/anan-assistant-go/internal/buildinfo"
	"github.com/garyellow/anan-assistant-go/internal/config"
	"github.com/garyellow/anan-assistant-go/internal/logger"
	"github.com/garyellow/anan-assistant-go/internal/metrics"
	"github.com/garyellow/anan-assistant-go/internal/r2client"
	"github.com/garyellow/anan-assistant-go/internal/rag"
	"github.com/garyellow/anan-assistant-go/internal/ratelimit"
	"github.com/garyellow/anan-assistant-go/internal/scraper/anan"
	"github.com/garyellow/anan-assistant-go/internal/sentry"
	"github.com/garyellow/anan-assistant-go/internal/snapshot"
	"github.com/garyellow/anan-assistant-go/internal/storage"
	"github.com/garyellow/anan-assistant-go/internal/warmup"
	"github.com/garyellow/anan-assistant-go/internal/webhook"
)

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, query string) assistant.Answer
}

// BulletinSource returns the class-change lines for a class filter.
type BulletinSource interface {
	Fetch(ctx context.Context, class string) ([]anan.Change, error)
}

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	assistant      Asker
	bulletin       BulletinSource
	library        *rag.Library
	topics         []string
	webhookHandler *webhook.Handler // nil when LINE is not configured
	snapshots      *snapshot.Manager
	askLimiter     *ratelimit.KeyedLimiter
	globalLimiter  *ratelimit.Limiter
	readinessState *warmup.ReadinessState
	router         *gin.Engine
	server         *http.Server
	wg             sync.WaitGroup // background jobs
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})
	log = log.WithField("service", "anan-assistant-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog.*Context calls pick up request and user ids through
	// the ContextHandler.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.Release()).Info("Initializing application...")

	release := cfg.SentryRelease
	if release == "" {
		release = buildinfo.Release()
	}
	if err := sentry.Initialize(sentry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		Release:          release,
		SampleRate:       cfg.SentrySampleRate,
		TracesSampleRate: cfg.SentryTracesSampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	} else if sentry.IsEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error reporting enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	snapshots, err := restoreSnapshot(ctx, cfg, m, log)
	if err != nil {
		return nil, err
	}

	db, err := storage.New(ctx, cfg.HistoryPath(), config.DatabaseBusyTimeout)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.HistoryPath()).Info("History database connected")

	library, err := NewLibrary(ctx, cfg, m)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	classifier, err := NewClassifier(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	asst, err := NewAssistant(ctx, cfg, classifier, library, m)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	topics := TopicNames(classifier)

	bulletin, err := NewBulletin(cfg, m)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var webhookHandler *webhook.Handler
	if cfg.LINEEnabled() {
		webhookHandler, err = webhook.NewHandler(webhook.HandlerConfig{
			ChannelSecret: cfg.LineChannelSecret,
			ChannelToken:  cfg.LineChannelToken,
			Assistant:     asst,
			Bulletin:      bulletin,
			History:       db,
			Metrics:       m,
			Timeout:       cfg.WebhookTimeout,
			GlobalRPS:     cfg.GlobalRateLimitRPS,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("webhook: %w", err)
		}
		log.Info("LINE webhook enabled")
	}

	app := &Application{
		cfg:            cfg,
		logger:         log,
		db:             db,
		metrics:        m,
		registry:       registry,
		assistant:      asst,
		bulletin:       bulletin,
		library:        library,
		topics:         topics,
		webhookHandler: webhookHandler,
		snapshots:      snapshots,
		askLimiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "ask",
			Burst:         cfg.AskRateBurst,
			RefillRate:    cfg.AskRateRefill,
			DailyLimit:    cfg.AskDailyLimit,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		}),
		globalLimiter:  ratelimit.NewPerSecond(cfg.GlobalRateLimitRPS),
		readinessState: warmup.NewReadinessState(config.WarmupTimeout),
	}

	gin.SetMode(gin.ReleaseMode)
	app.router = app.buildRouter()
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.WithField("topics", len(topics)).Info("Initialization complete")
	return app, nil
}

// restoreSnapshot pulls the last history snapshot from R2 before the
// database is opened. A failed restore starts with an empty history.
func restoreSnapshot(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (*snapshot.Manager, error) {
	if !cfg.R2Enabled {
		return nil, nil
	}

	client, err := r2client.New(ctx, r2client.Config{
		AccountID:   cfg.R2AccountID,
		AccessKeyID: cfg.R2AccessKeyID,
		SecretKey:   cfg.R2SecretAccessKey,
		BucketName:  cfg.R2BucketName,
	})
	if err != nil {
		return nil, fmt.Errorf("r2 client: %w", err)
	}

	mgr := snapshot.New(client, snapshot.Config{
		SnapshotKey: cfg.R2SnapshotKey,
		Interval:    cfg.R2SnapshotInterval,
		TempDir:     cfg.DataDir,
	}, m)

	restoreCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	restored, err := mgr.Restore(restoreCtx, cfg.HistoryPath())
	switch {
	case err != nil:
		log.WithError(err).Warn("History snapshot restore failed; starting with local state")
	case restored:
		log.WithField("etag", mgr.CurrentETag()).Info("History restored from snapshot")
	}
	return mgr, nil
}

// Run starts the HTTP server and background jobs and blocks until
// SIGINT/SIGTERM.
//
// Shutdown order: stop HTTP and the webhook first so no more rows are
// written, then cancel the jobs (the snapshot uploader makes its final
// upload here), then close the database.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	return a.shutdown(cancel)
}

func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.initialWarmup(ctx)
	})
	if a.cfg.WatchDocs {
		a.wg.Go(func() {
			if err := a.library.Watch(ctx, config.DocsReloadDebounce); err != nil {
				a.logger.WithError(err).Warn("Document watcher stopped")
			}
		})
	}
	if a.snapshots != nil {
		a.wg.Go(func() {
			a.snapshots.Run(ctx, a.db, config.GracefulShutdown/2)
		})
	}
	a.wg.Go(func() {
		a.updateHistoryMetrics(ctx)
	})
}

func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

func (a *Application) shutdown(cancelJobs context.CancelFunc) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	if a.webhookHandler != nil {
		a.logger.Info("Waiting for webhook events to complete...")
		if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
		}
	}

	cancelJobs()
	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	a.logger.Info("Closing resources...")
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}
	a.askLimiter.Stop()

	sentry.Flush(5 * time.Second)
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// initialWarmup builds every topic store once and then marks the service
// ready. Topics that fail are built lazily on first question.
func (a *Application) initialWarmup(ctx context.Context) {
	warmupCtx, cancel := context.WithTimeout(ctx, config.WarmupTimeout)
	defer cancel()

	start := time.Now()
	stats, err := warmup.Run(warmupCtx, a.library, warmup.Options{
		Topics:  a.topics,
		Metrics: a.metrics,
	})
	a.readinessState.MarkReady()

	entry := a.logger.WithField("topics", stats.Topics.Load()).
		WithField("chunks", stats.Chunks.Load()).
		WithField("empty", stats.Empty.Load()).
		WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		entry.WithError(err).WithField("failed", stats.Failed.Load()).Error("Initial warmup finished with errors")
		return
	}
	entry.Info("Initial warmup completed")
}

// updateHistoryMetrics periodically records the history row count.
func (a *Application) updateHistoryMetrics(ctx context.Context) {
	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	a.recordHistoryMetrics(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordHistoryMetrics(ctx)
		}
	}
}

func (a *Application) recordHistoryMetrics(ctx context.Context) {
	n, err := a.db.Count(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.WithError(err).Warn("Failed to count history rows")
		}
		return
	}
	a.metrics.SetHistoryRows(n)
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *Application) Handler() http.Handler {
	return a.router
}
