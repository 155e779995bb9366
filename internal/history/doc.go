// Package history keeps an audit trail of door contact readings in SQLite.
//
// Every successful reading (broadcast-triggered or refreshed on demand) is
// recorded by a Recorder registered as a sensor.Observer. The trail is
// write-mostly: it serves the history endpoint and is never used to seed the
// in-memory status cache after a restart.
package history
