package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tickerwatch/ingester/internal/model"
)

// HistoryWriter inserts snapshot rows into one table.
type HistoryWriter struct {
	cfg    WriterConfig
	logger *slog.Logger
	db     DB

	insert string
	exists string

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewHistoryWriter creates a writer for cfg.Table.
func NewHistoryWriter(cfg WriterConfig, db DB, logger *slog.Logger) *HistoryWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	return &HistoryWriter{
		cfg:    cfg,
		logger: logger.With("component", "history_writer", "table", cfg.Table),
		db:     db,
		insert: insertSQL(cfg.Table),
		exists: existsSQL(cfg.Table),
	}
}

// Table returns the destination table name.
func (w *HistoryWriter) Table() string {
	return w.cfg.Table
}

// Store inserts rows in chunks of BatchSize. Rows already present for
// (symbol, data_time) are skipped. On error the result holds the rows
// committed by earlier chunks.
func (w *HistoryWriter) Store(ctx context.Context, rows []model.HistoricalRow) (StoreResult, error) {
	var res StoreResult
	start := time.Now()

	for off := 0; off < len(rows); off += w.cfg.BatchSize {
		end := min(off+w.cfg.BatchSize, len(rows))
		chunk := rows[off:end]

		conflicts, err := w.batchInsert(ctx, chunk)
		if err != nil {
			w.mu.Lock()
			w.metrics.Errors++
			w.mu.Unlock()
			w.logger.Error("batch insert failed", "error", err, "count", len(chunk), "offset", off)
			return res, fmt.Errorf("%w: insert into %s: %w", ErrPersistence, w.cfg.Table, err)
		}

		res.Inserted += len(chunk) - conflicts
		res.Skipped += conflicts

		w.mu.Lock()
		w.metrics.Inserts += int64(len(chunk) - conflicts)
		w.metrics.Conflicts += int64(conflicts)
		w.metrics.Flushes++
		w.mu.Unlock()
	}

	w.logger.Debug("stored snapshot",
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"duration", time.Since(start),
	)
	return res, nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *HistoryWriter) batchInsert(ctx context.Context, rows []model.HistoricalRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(w.insert,
			r.Symbol, r.PriceChange, r.PriceChangePercent, r.WeightedAvgPrice,
			r.LastPrice, r.LastQty, r.BidPrice, r.BidQty, r.AskPrice, r.AskQty,
			r.OpenPrice, r.HighPrice, r.LowPrice, r.Volume, r.QuoteVolume,
			r.OpenTime.UTC(), r.CloseTime.UTC(), r.FirstID, r.LastID, r.Count, r.DataTime.UTC(),
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// HasSnapshotOn reports whether any row has data_time on the UTC date of day.
func (w *HistoryWriter) HasSnapshotOn(ctx context.Context, day time.Time) (bool, error) {
	from := model.DayBucket(day)
	to := from.Add(24 * time.Hour)

	var exists bool
	if err := w.db.QueryRow(ctx, w.exists, from, to).Scan(&exists); err != nil {
		w.mu.Lock()
		w.metrics.Errors++
		w.mu.Unlock()
		return false, fmt.Errorf("%w: query %s: %w", ErrPersistence, w.cfg.Table, err)
	}
	return exists, nil
}

// Stats returns current metrics.
func (w *HistoryWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}
