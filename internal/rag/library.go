package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/garyellow/anan-assistant-go/internal/genai"
	"github.com/garyellow/anan-assistant-go/internal/metrics"
)

// DocExt is the extension of topic reference files.
const DocExt = ".txt"

// ErrInvalidTopic is returned for topic names that are not plain file stems.
var ErrInvalidTopic = errors.New("rag: invalid topic name")

// LibraryConfig configures a Library.
type LibraryConfig struct {
	// DocsDir holds {topic}.txt reference files.
	DocsDir string
	// CacheDir holds embedded stores; empty disables the cache.
	CacheDir string
	Embedder genai.Embedder
	TopK     int
	Metrics  *metrics.Metrics
}

// Library owns one store per topic, built on first use and kept until
// Reload replaces it. The same embedder serves documents and queries.
type Library struct {
	docsDir  string
	cacheDir string
	embedder genai.Embedder
	topK     int
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	stores map[string]*Store
	group  singleflight.Group
}

// NewLibrary creates an empty library.
func NewLibrary(cfg LibraryConfig) *Library {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Library{
		docsDir:  cfg.DocsDir,
		cacheDir: cfg.CacheDir,
		embedder: cfg.Embedder,
		topK:     topK,
		metrics:  cfg.Metrics,
		stores:   make(map[string]*Store),
	}
}

// Embedder returns the embedder shared by every store.
func (l *Library) Embedder() genai.Embedder {
	return l.embedder
}

// TopK returns the number of chunks Retrieve joins.
func (l *Library) TopK() int {
	return l.topK
}

// Store returns the topic's store, building it on first use. Concurrent
// callers for the same topic share one build.
func (l *Library) Store(ctx context.Context, topic string) (*Store, error) {
	if err := validateTopic(topic); err != nil {
		return nil, err
	}

	l.mu.RLock()
	s, ok := l.stores[topic]
	l.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, shared := l.group.Do(topic, func() (any, error) {
		l.mu.RLock()
		s, ok := l.stores[topic]
		l.mu.RUnlock()
		if ok {
			return s, nil
		}

		// Detached so one caller's cancellation cannot fail the others.
		s, err := l.build(context.WithoutCancel(ctx), topic)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.stores[topic] = s
		l.mu.Unlock()
		return s, nil
	})
	if shared {
		l.metrics.RecordSingleflightDedup("rag")
	}
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Retrieve returns the context for query from the topic's store.
func (l *Library) Retrieve(ctx context.Context, topic, query string) (string, error) {
	s, err := l.Store(ctx, topic)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := s.Retrieve(ctx, query, l.topK, l.embedder)
	if err == nil {
		l.metrics.RecordRetrieval(topic, time.Since(start).Seconds())
	}
	return text, err
}

// Reload rebuilds the topic from disk and swaps it in. On failure the
// previous store stays in place.
func (l *Library) Reload(ctx context.Context, topic string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}

	_, err, _ := l.group.Do("reload:"+topic, func() (any, error) {
		s, err := l.build(ctx, topic)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.stores[topic] = s
		l.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return fmt.Errorf("reload %s: %w", topic, err)
	}
	slog.InfoContext(ctx, "Topic store reloaded", "topic", topic)
	return nil
}

// Warm builds every topic in parallel. It returns the first error after
// all builds finish.
func (l *Library) Warm(ctx context.Context, topics []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, topic := range topics {
		g.Go(func() error {
			if _, err := l.Store(gctx, topic); err != nil {
				return fmt.Errorf("warm %s: %w", topic, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Loaded returns the topics that currently have a store, sorted.
func (l *Library) Loaded() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.stores))
	for topic := range l.stores {
		out = append(out, topic)
	}
	slices.Sort(out)
	return out
}

// IsLoaded reports whether topic has a store.
func (l *Library) IsLoaded(topic string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.stores[topic]
	return ok
}

// ClearCache deletes the topic's cached embeddings and forgets its
// in-memory store, so the next Store call re-embeds the text.
func (l *Library) ClearCache(topic string) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.stores, topic)
	l.mu.Unlock()

	if l.cacheDir == "" {
		return nil
	}
	if err := os.Remove(cachePath(l.cacheDir, topic)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache for %s: %w", topic, err)
	}
	return nil
}

// DocPath returns the reference file for topic.
func (l *Library) DocPath(topic string) string {
	return filepath.Join(l.docsDir, topic+DocExt)
}

func (l *Library) build(ctx context.Context, topic string) (*Store, error) {
	start := time.Now()

	raw, err := os.ReadFile(l.DocPath(topic))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", l.DocPath(topic), err)
	}
	text := string(raw)
	hash := sourceHash(text)
	model := l.embedder.Model()

	if l.cacheDir != "" {
		s, err := loadCache(l.cacheDir, topic, model, hash)
		if err != nil {
			slog.WarnContext(ctx, "Ignoring unreadable embedding cache",
				"topic", topic,
				"error", err)
		}
		if s != nil {
			l.metrics.RecordCacheHit("rag")
			l.metrics.SetStoreChunks(topic, s.Len())
			slog.InfoContext(ctx, "Topic store loaded from cache",
				"topic", topic,
				"chunks", s.Len())
			return s, nil
		}
		l.metrics.RecordCacheMiss("rag")
	}

	s, err := Build(ctx, text, l.embedder)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", topic, err)
	}

	if l.cacheDir != "" && s.Len() > 0 {
		if err := saveCache(l.cacheDir, topic, hash, s); err != nil {
			slog.WarnContext(ctx, "Failed to write embedding cache",
				"topic", topic,
				"error", err)
		}
	}

	l.metrics.SetStoreChunks(topic, s.Len())
	slog.InfoContext(ctx, "Topic store built",
		"topic", topic,
		"chunks", s.Len(),
		"model", model,
		"duration_ms", time.Since(start).Milliseconds())
	return s, nil
}

func validateTopic(topic string) error {
	if topic == "" || topic != filepath.Base(topic) || strings.HasPrefix(topic, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return nil
}
