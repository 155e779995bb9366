package history

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/doorwatch/internal/sensor"
)

// Query limits for Recent.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ErrDeviceRequired is returned when an entry or query lacks a device id.
var ErrDeviceRequired = errors.New("history: device id is required")

// Entry is one recorded reading.
type Entry struct {
	ID        int64        `json:"id"`
	DeviceID  string       `json:"device_id"`
	State     sensor.State `json:"state"`
	Previous  sensor.State `json:"previous"`
	Changed   bool         `json:"changed"`
	EventID   string       `json:"event_id,omitempty"`
	Source    string       `json:"source"`
	CreatedAt time.Time    `json:"created_at"`
}

// EntryFromReading converts an observed reading to a history entry.
func EntryFromReading(r sensor.Reading) Entry {
	return Entry{
		DeviceID:  r.DeviceID,
		State:     r.State,
		Previous:  r.Previous,
		Changed:   r.Changed,
		EventID:   r.EventID,
		Source:    r.Source,
		CreatedAt: r.ObservedAt,
	}
}

// Repository stores and retrieves door history.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Record appends an entry. A zero CreatedAt is set to now.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries for the device, newest first.
	// limit <= 0 means DefaultLimit; values above MaxLimit are clamped.
	Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error)

	// Prune deletes entries older than olderThan and returns how many.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// clampLimit applies the Recent limit rules.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
