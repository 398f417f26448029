// Package cache implements the Snapshot Cache component.
//
// The Snapshot Cache writes to Redis:
//   - <prefix>:details           hash, symbol → latest record JSON
//   - <prefix>:details:<symbol>  hash of compact fields for a single symbol
//   - <prefix>:top<N>            sorted set, combined top-N by percent change
//   - <prefix>:top<N>:ordered    list, the same ranking in rank order
//   - <prefix>:top_gainers       sorted set, top-N gainers
//   - <prefix>:top_losers        sorted set, top-N losers
//   - <prefix>:updated_at        unix milliseconds of the last applied batch
//
// Every batch is applied in a single MULTI/EXEC transaction so readers never
// observe a half-replaced ranking.
package cache
