// Package api provides the exchange REST client used for full-market
// snapshots and server time.
//
// Endpoints:
//   - GET /api/v3/ticker/24hr  all symbols, verbose keys
//   - GET /api/v3/time         {"serverTime": <unix ms>}
//
// Production base URL: https://api.binance.com
package api
