// Package snapshot backs the history database up to R2: it restores the
// latest snapshot on boot and uploads a fresh one periodically.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/garyellow/anan-assistant-go/internal/metrics"
	"github.com/garyellow/anan-assistant-go/internal/r2client"
	"github.com/garyellow/anan-assistant-go/internal/storage"
)

// ErrNotFound indicates no snapshot exists in R2.
var ErrNotFound = errors.New("snapshot: not found")

// ObjectStore is the subset of r2client.Client the manager needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Config holds snapshot manager configuration.
type Config struct {
	SnapshotKey string        // R2 object key, e.g. "snapshots/history.db.zst"
	Interval    time.Duration // how often Run uploads
	TempDir     string        // scratch space for snapshot files
}

// Manager uploads and restores history snapshots.
type Manager struct {
	store   ObjectStore
	config  Config
	metrics *metrics.Metrics

	mu              sync.Mutex
	currentETag     string
	lastFingerprint string
}

// New creates a new snapshot manager.
func New(store ObjectStore, cfg Config, m *metrics.Metrics) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Manager{store: store, config: cfg, metrics: m}
}

// Restore downloads the latest snapshot to dbPath when no local database
// exists. It reports whether a snapshot was restored.
func (m *Manager) Restore(ctx context.Context, dbPath string) (bool, error) {
	if _, err := os.Stat(dbPath); err == nil {
		slog.InfoContext(ctx, "Local history database present, skipping restore", "path", dbPath)
		return false, nil
	}

	body, etag, err := m.store.Download(ctx, m.config.SnapshotKey)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return false, fmt.Errorf("create database directory: %w", err)
	}
	if err := r2client.DecompressStream(body, dbPath); err != nil {
		return false, fmt.Errorf("decompress snapshot: %w", err)
	}

	m.mu.Lock()
	m.currentETag = etag
	m.mu.Unlock()

	slog.InfoContext(ctx, "History database restored from snapshot",
		"path", dbPath,
		"etag", etag)
	return true, nil
}

// Upload compresses a consistent copy of db and uploads it. It returns
// the ETag, or "" with a nil error when nothing changed since the last
// upload.
func (m *Manager) Upload(ctx context.Context, db *storage.DB) (string, error) {
	fp, err := db.Fingerprint(ctx)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	unchanged := fp == m.lastFingerprint
	m.mu.Unlock()
	if unchanged {
		return "", nil
	}

	start := time.Now()
	etag, err := m.upload(ctx, db)
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordJob("snapshot_upload", status, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.currentETag = etag
	m.lastFingerprint = fp
	m.mu.Unlock()

	slog.InfoContext(ctx, "History snapshot uploaded",
		"key", m.config.SnapshotKey,
		"etag", etag,
		"duration_ms", time.Since(start).Milliseconds())
	return etag, nil
}

func (m *Manager) upload(ctx context.Context, db *storage.DB) (string, error) {
	snapshotPath := filepath.Join(m.config.TempDir, fmt.Sprintf("snapshot_%d.db", time.Now().UnixNano()))
	if err := db.CreateSnapshot(ctx, snapshotPath); err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(snapshotPath)

	compressedPath := snapshotPath + ".zst"
	if err := r2client.CompressFile(snapshotPath, compressedPath); err != nil {
		return "", fmt.Errorf("compress database: %w", err)
	}
	defer os.Remove(compressedPath)

	f, err := os.Open(compressedPath)
	if err != nil {
		return "", fmt.Errorf("open compressed file: %w", err)
	}
	defer f.Close()

	etag, err := m.store.Upload(ctx, m.config.SnapshotKey, f, r2client.ContentType)
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return etag, nil
}

// Run uploads every Interval until ctx is done, then makes one last
// upload bounded by finalTimeout.
func (m *Manager) Run(ctx context.Context, db *storage.DB, finalTimeout time.Duration) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Snapshot uploader started",
		"interval", m.config.Interval,
		"snapshot_key", m.config.SnapshotKey)

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalTimeout)
			if _, err := m.Upload(finalCtx, db); err != nil {
				slog.ErrorContext(finalCtx, "Final snapshot upload failed", "error", err)
			}
			cancel()
			slog.Info("Snapshot uploader stopped")
			return
		case <-ticker.C:
			if _, err := m.Upload(ctx, db); err != nil {
				slog.ErrorContext(ctx, "Snapshot upload failed", "error", err)
			}
		}
	}
}

// CurrentETag returns the ETag of the last restored or uploaded snapshot.
func (m *Manager) CurrentETag() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentETag
}
