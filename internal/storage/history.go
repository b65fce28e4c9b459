package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultHistoryLimit is how many rows List returns when limit is not
// positive.
const DefaultHistoryLimit = 50

// Append stores one question and answer and returns the new row id.
func (db *DB) Append(ctx context.Context, page, question, answer string) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	start := time.Now()
	res, err := db.writer.ExecContext(ctx,
		`INSERT INTO history (time, page, question, answer) VALUES (?, ?, ?, ?)`,
		time.Now().Format(TimeLayout), page, question, answer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to append history",
			"page", page,
			"error", err)
		return 0, fmt.Errorf("failed to append history: %w", err)
	}

	if d := time.Since(start); d > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "Append",
			"duration_ms", d.Milliseconds())
	}
	return res.LastInsertId()
}

// List returns up to limit rows, newest first.
func (db *DB) List(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, time, page, question, answer FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	records := make([]HistoryRecord, 0, limit)
	for rows.Next() {
		var r HistoryRecord
		if err := rows.Scan(&r.ID, &r.Time, &r.Page, &r.Question, &r.Answer); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return records, nil
}

// DeleteOne removes the row with id. It returns ErrNotFound when there is
// no such row.
func (db *DB) DeleteOne(ctx context.Context, id int64) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.writer.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete history row",
			"id", id,
			"error", err)
		return fmt.Errorf("failed to delete history row %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every row and returns how many were deleted.
func (db *DB) DeleteAll(ctx context.Context) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.writer.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		slog.ErrorContext(ctx, "failed to clear history", "error", err)
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of rows.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// Fingerprint changes whenever rows are added or removed; the snapshot
// uploader uses it to skip unchanged databases.
func (db *DB) Fingerprint(ctx context.Context) (string, error) {
	var n int
	var maxID int64
	err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(MAX(id), 0) FROM history`).Scan(&n, &maxID)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint history: %w", err)
	}
	return fmt.Sprintf("%d:%d", n, maxID), nil
}
