// Package metrics exposes component statistics to Prometheus.
//
// Components keep their own atomic counters and expose them through Stats()
// methods. A Collector reads those snapshots at scrape time, so nothing in
// the hot path depends on the Prometheus client.
//
// Key metrics:
//   - Stream frames, drops, reconnects and connection state
//   - Records rejected by validation, by kind
//   - Cache batch outcomes
//   - History rows inserted/skipped per table
//   - Poller attempts, fetch errors and stored snapshots
package metrics
