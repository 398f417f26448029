// Package poller captures full-market snapshots from the REST endpoint.
//
// HourlyPoller stores one snapshot per clock hour into the hourly table,
// stamped with the top of the hour.
//
// RolloverDetector makes sure one snapshot per UTC day lands in the daily
// table. Each cycle asks the exchange for its current time, skips the day
// if a snapshot already exists, and otherwise polls until the endpoint's
// close times reach the server's date. The poll interval tightens as UTC
// midnight approaches:
//
//	remaining <= 10m  -> 60s
//	remaining <= 30m  -> 180s
//	otherwise         -> 300s
//
// All waits are cancellable timers.
package poller
