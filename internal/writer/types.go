package writer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrPersistence wraps every failure to talk to the database.
var ErrPersistence = errors.New("persistence failed")

// DB is the subset of *pgxpool.Pool the writers use.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WriterConfig holds configuration for a history writer.
type WriterConfig struct {
	// Table is the destination table name.
	Table string

	// BatchSize is the number of rows sent per round trip.
	BatchSize int
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Table:     "ticker_data_full",
		BatchSize: 500,
	}
}

// StoreResult reports the outcome of one Store call.
type StoreResult struct {
	Inserted int
	Skipped  int // already present for (symbol, data_time)
}

// WriterMetrics contains runtime statistics.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}
