// Package sensor watches a door contact sensor and caches its last known state.
//
// The device broadcasts a UDP datagram on port 6667 whenever it powers on
// (the battery sensor wakes on every contact change). A Watcher listens for
// those broadcasts from the configured device address and, for each one,
// reads the contact state through a tuya.Client. Successful readings land in
// a single-slot StatusCache that request handlers read without blocking.
//
// # Architecture
//
//	Listener (UDP :6667) ──Event──▶ Watcher ──ReadContact──▶ tuya.Client
//	                                   │
//	                                   ├──Set──▶ StatusCache ◀──Status── Monitor callers
//	                                   └──ObserveState──▶ Observers (history, MQTT, InfluxDB)
//
// Monitor is the only type handed to the rest of the process. Its Start is
// idempotent and returns immediately; Status never blocks and never fails.
//
// # Failure policy
//
// A failed read is logged and leaves the cache untouched, so callers see the
// last known state (or Unknown). There are no retries: the next broadcast
// triggers the next attempt. Only a failure to bind the UDP socket is fatal,
// and it is reported by New before anything starts.
//
// # Concurrency
//
// One goroutine owns the socket and performs all fetches in receive order.
// The cache is written only from that goroutine (or from Refresh, which takes
// the same fetch lock) and is read lock-free from any goroutine.
package sensor
