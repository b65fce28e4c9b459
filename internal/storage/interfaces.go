package storage

import "context"

// HistoryRepository is the question history surface used by the front ends.
type HistoryRepository interface {
	Append(ctx context.Context, page, question, answer string) (int64, error)
	List(ctx context.Context, limit int) ([]HistoryRecord, error)
	DeleteOne(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

// HealthRepository reports database reachability.
type HealthRepository interface {
	Ping(ctx context.Context) error
}

// Repository combines all repository interfaces.
type Repository interface {
	HistoryRepository
	HealthRepository
	Close() error
}

// Ensure DB implements all repository interfaces at compile time.
var (
	_ HistoryRepository = (*DB)(nil)
	_ HealthRepository  = (*DB)(nil)
	_ Repository        = (*DB)(nil)
)
