// Package writer persists full-market snapshots.
//
// Each HistoryWriter owns one table keyed by (symbol, data_time). Inserts use
// ON CONFLICT DO NOTHING so re-storing a snapshot for the same bucket is a
// no-op; conflicting rows are reported as skipped, never as errors.
//
// Decimals are stored as NUMERIC, instants as TIMESTAMPTZ in UTC.
package writer
