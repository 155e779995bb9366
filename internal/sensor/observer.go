package sensor

import (
	"context"
	"time"
)

// Reading sources.
const (
	SourceBroadcast = "broadcast"
	SourceRefresh   = "refresh"
)

// Reading describes one successful contact read.
type Reading struct {
	DeviceID   string    `json:"device_id"`
	State      State     `json:"state"`
	Previous   State     `json:"previous"`
	Changed    bool      `json:"changed"`
	EventID    string    `json:"event_id"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
}

// Observer is notified after each successful read, once the cache has been
// updated. Observers run on the fetching goroutine and should return quickly;
// a returned error is logged and otherwise ignored.
type Observer interface {
	ObserveState(ctx context.Context, r Reading) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, r Reading) error

// ObserveState implements Observer.
func (f ObserverFunc) ObserveState(ctx context.Context, r Reading) error {
	return f(ctx, r)
}
