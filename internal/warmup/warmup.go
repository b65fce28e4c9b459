// Package warmup pre-builds the per-topic embedding stores so the first
// question on each topic does not pay for embedding the reference text.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/anan-assistant-go/internal/metrics"
	"github.com/garyellow/anan-assistant-go/internal/rag"
	"github.com/garyellow/anan-assistant-go/internal/sliceutil"
)

// DefaultConcurrency bounds parallel topic builds.
const DefaultConcurrency = 4

// Library is the part of rag.Library the warmup needs.
type Library interface {
	Store(ctx context.Context, topic string) (*rag.Store, error)
	ClearCache(topic string) error
}

// Stats counts warmup results. Fields are updated atomically.
type Stats struct {
	Topics atomic.Int64 // stores built or loaded
	Chunks atomic.Int64
	Empty  atomic.Int64 // topics with no reference text
	Failed atomic.Int64
}

// Options configures a warmup run.
type Options struct {
	Topics      []string
	Reset       bool // drop cached embeddings first
	Concurrency int
	Metrics     *metrics.Metrics
}

// Run builds every topic's store. A failing topic does not stop the
// others; all failures are returned joined.
func Run(ctx context.Context, lib Library, opts Options) (*Stats, error) {
	stats := &Stats{}
	start := time.Now()

	if opts.Reset {
		slog.WarnContext(ctx, "Resetting embedding cache", "topics", len(opts.Topics))
		for _, topic := range opts.Topics {
			if err := lib.ClearCache(topic); err != nil {
				return stats, fmt.Errorf("reset cache: %w", err)
			}
		}
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	errs := make([]error, len(opts.Topics))

	for i, topic := range opts.Topics {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", topic, err)
				return nil
			}
			s, err := lib.Store(ctx, topic)
			if err != nil {
				stats.Failed.Add(1)
				errs[i] = fmt.Errorf("%s: %w", topic, err)
				slog.ErrorContext(ctx, "Topic warmup failed", "topic", topic, "error", err)
				return nil
			}
			stats.Topics.Add(1)
			stats.Chunks.Add(int64(s.Len()))
			if s.Len() == 0 {
				stats.Empty.Add(1)
				slog.WarnContext(ctx, "Topic has no reference text", "topic", topic)
			}
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	status := "success"
	if err != nil {
		status = "error"
	}
	opts.Metrics.RecordJob("warmup", status, time.Since(start).Seconds())

	slog.InfoContext(ctx, "Warmup finished",
		"topics", stats.Topics.Load(),
		"chunks", stats.Chunks.Load(),
		"empty", stats.Empty.Load(),
		"failed", stats.Failed.Load(),
		"duration_ms", time.Since(start).Milliseconds())

	return stats, err
}

// ParseTopics splits a comma-separated topic list, dropping blanks and
// repeats.
func ParseTopics(s string) []string {
	topics := []string{}
	for t := range strings.SplitSeq(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return sliceutil.Deduplicate(topics, func(t string) string { return t })
}
