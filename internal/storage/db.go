// Package storage persists the question history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB holds a single writer connection and a reader pool over one file.
// Writes are serialized; WAL lets readers proceed alongside them.
type DB struct {
	writer *sql.DB
	reader *sql.DB
	path   string

	writeMu sync.Mutex
}

// New opens (creating if needed) the database at dbPath and applies the
// schema. busyTimeout bounds how long a statement waits on a lock.
func New(ctx context.Context, dbPath string, busyTimeout time.Duration) (*DB, error) {
	if dbPath != MemoryPath {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	writer, err := open(ctx, dbPath, busyTimeout)
	if err != nil {
		return nil, err
	}
	writer.SetMaxOpenConns(1)

	// An in-memory database exists only on its own connection, so readers
	// share the writer.
	reader := writer
	if dbPath != MemoryPath {
		reader, err = open(ctx, dbPath, busyTimeout)
		if err != nil {
			_ = writer.Close()
			return nil, err
		}
		reader.SetMaxOpenConns(4)
		reader.SetMaxIdleConns(2)
	}

	db := &DB{writer: writer, reader: reader, path: dbPath}
	if err := InitSchema(ctx, writer); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func open(ctx context.Context, dbPath string, busyTimeout time.Duration) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds()),
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// Close closes both connection pools.
func (db *DB) Close() error {
	var err error
	if db.reader != nil && db.reader != db.writer {
		err = db.reader.Close()
	}
	if db.writer != nil {
		if werr := db.writer.Close(); err == nil {
			err = werr
		}
	}
	return err
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping checks that the reader pool is usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.reader.PingContext(ctx)
}

// CreateSnapshot writes a consistent copy of the database to dst using
// VACUUM INTO. dst must not exist.
func (db *DB) CreateSnapshot(ctx context.Context, dst string) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.writer.ExecContext(ctx, "VACUUM INTO ?", dst); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return nil
}

// NewTestDB creates an in-memory database for tests.
func NewTestDB(ctx context.Context) (*DB, error) {
	return New(ctx, MemoryPath, 5*time.Second)
}
