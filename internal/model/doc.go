// Package model defines shared data types used across the ingester.
//
// Conventions:
//   - Prices, quantities and percentages: decimal.Decimal (never float64 at rest)
//   - Timestamps: time.Time in UTC, millisecond precision from the exchange
//   - Symbols: upper case, unique within a batch
package model
