package sensor

import (
	"sync/atomic"
	"time"
)

// Snapshot is the cached state together with the time it was stored.
// UpdatedAt is zero while the state is still the initial Unknown.
type Snapshot struct {
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusCache holds the last successfully observed door state.
//
// Reads and writes never block each other. A read returns either the value
// of the latest completed Set or an earlier one, never a partial write.
// The zero value is ready to use and reports Unknown.
type StatusCache struct {
	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

// NewStatusCache creates an empty cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{now: time.Now}
}

// Set replaces the cached state.
func (c *StatusCache) Set(state State) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	c.current.Store(&Snapshot{State: state, UpdatedAt: now().UTC()})
}

// Get returns the cached state, Unknown before the first Set.
func (c *StatusCache) Get() State {
	return c.Snapshot().State
}

// Snapshot returns the cached state and its update time.
func (c *StatusCache) Snapshot() Snapshot {
	if s := c.current.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}
