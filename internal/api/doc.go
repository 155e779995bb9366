// Package api implements the HTTP status surface for doorwatch.
//
// This package provides:
//   - REST endpoints for the cached door state, forced refreshes and history
//   - A WebSocket stream of door readings
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
// The server never talks to the device itself. Reads come from the monitor's
// in-memory cache; POST /door/refresh asks the monitor to fetch on demand and
// reports whether the fetch succeeded. Readings reach WebSocket clients
// through the Hub, which is registered as a sensor observer.
//
// # Graceful Degradation
//
// History endpoints return 503 when no history repository is configured.
// The door endpoints keep working without a database.
package api
