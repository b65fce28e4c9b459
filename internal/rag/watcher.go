package rag

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads topics whose reference file changes, batching events
// within debounce. It blocks until ctx is done.
func (l *Library) Watch(ctx context.Context, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(l.docsDir); err != nil {
		return fmt.Errorf("watch %s: %w", l.docsDir, err)
	}
	slog.InfoContext(ctx, "Watching reference documents", "dir", l.docsDir)

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			topic, ok := topicFromPath(event.Name)
			if !ok || !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			pending[topic] = struct{}{}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "Document watcher error", "error", err)

		case <-timer.C:
			for topic := range pending {
				// Unloaded topics pick up the change on first use.
				if !l.IsLoaded(topic) {
					continue
				}
				if err := l.Reload(ctx, topic); err != nil {
					slog.ErrorContext(ctx, "Failed to reload topic store",
						"topic", topic,
						"error", err)
				}
			}
			clear(pending)
		}
	}
}

func topicFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, DocExt) {
		return "", false
	}
	topic := strings.TrimSuffix(base, DocExt)
	return topic, validateTopic(topic) == nil
}
