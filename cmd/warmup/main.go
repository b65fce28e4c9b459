// Command warmup embeds every topic's reference text ahead of time so the
// server starts with a populated embedding cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/garyellow/anan-assistant-go/internal/app"
	"github.com/garyellow/anan-assistant-go/internal/config"
	"github.com/garyellow/anan-assistant-go/internal/logger"
	"github.com/garyellow/anan-assistant-go/internal/warmup"
)

// CLI flags
var (
	resetFlag       = flag.Bool("reset", false, "Delete cached embeddings before warmup")
	topicsFlag      = flag.String("topics", "", "Comma-separated topics to warm up (empty = all)")
	concurrencyFlag = flag.Int("concurrency", warmup.DefaultConcurrency, "Topics embedded in parallel")
)

func main() {
	flag.Parse()

	// Completion credentials are not needed to build embeddings
	cfg, err := config.LoadForMode(config.WarmupMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log.Logger)
	log.Info("Starting warmup tool")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Warmup failed")
		_, _ = fmt.Fprintf(os.Stderr, "\n❌ %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.WarmupTimeout)
	defer cancel()

	classifier, err := app.NewClassifier(cfg)
	if err != nil {
		return err
	}
	topics, err := selectTopics(*topicsFlag, app.TopicNames(classifier))
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		fmt.Println("⏭️  No topics to warm up, skipping")
		return nil
	}

	lib, err := app.NewLibrary(ctx, cfg, nil)
	if err != nil {
		return err
	}

	log.WithField("topics", topics).
		WithField("concurrency", *concurrencyFlag).
		WithField("cache_dir", cfg.EmbeddingCacheDir()).
		Info("Topics to warm up")

	start := time.Now()
	stats, err := warmup.Run(ctx, lib, warmup.Options{
		Topics:      topics,
		Reset:       *resetFlag,
		Concurrency: *concurrencyFlag,
	})
	duration := time.Since(start).Round(time.Second)

	summary := fmt.Sprintf("%d topics, %d chunks (%d empty, %d failed)",
		stats.Topics.Load(), stats.Chunks.Load(), stats.Empty.Load(), stats.Failed.Load())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "\n❌ Warmup completed with errors: %s\nTotal time: %v\n", summary, duration)
		return err
	}

	fmt.Printf("\n✅ Warmup complete: %s\nTotal time: %v\n", summary, duration)
	return nil
}

// selectTopics resolves the -topics flag against the topics the classifier
// knows. An empty flag selects all of them.
func selectTopics(raw string, known []string) ([]string, error) {
	requested := warmup.ParseTopics(strings.ToLower(raw))
	if len(requested) == 0 {
		return known, nil
	}

	var unknown []string
	for _, t := range requested {
		if !slices.Contains(known, t) {
			unknown = append(unknown, t)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown topics %s (known: %s)",
			strings.Join(unknown, ","), strings.Join(known, ","))
	}
	return requested, nil
}
