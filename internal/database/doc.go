// Package database provides the PostgreSQL/TimescaleDB connection pool used
// by the history writers.
//
// Hourly and daily full-market snapshots live in two tables of the same
// database; see writer.CreateTableSQL for their layout.
package database
