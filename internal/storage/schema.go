package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates the history table and its index.
func InitSchema(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time TEXT NOT NULL,
		page TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_time ON history(time);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}
