package sensor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nerrad567/doorwatch/internal/tuya"
)

// Options configures a Monitor.
type Options struct {
	// DeviceID identifies the sensor in logs and readings.
	DeviceID string

	// DeviceIP is the only source address whose broadcasts are accepted.
	DeviceIP net.IP

	// ListenAddr is the UDP address to bind. Defaults to ":6667".
	ListenAddr string

	// Client reads the contact state.
	Client tuya.Client

	// FetchTimeout bounds each read. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration

	// Logger is optional.
	Logger Logger
}

// Monitor is the door sensor handle the rest of the process uses.
type Monitor struct {
	listener *Listener
	watcher  *Watcher
	cache    *StatusCache
}

// New binds the broadcast socket and wires the watcher.
//
// Nothing is received until Start. Returns an error wrapping ErrSocketBind
// if the socket cannot be bound.
func New(opts Options) (*Monitor, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("%w: client is required", ErrInvalidOptions)
	}
	if opts.DeviceIP == nil {
		return nil, fmt.Errorf("%w: device address is required", ErrInvalidOptions)
	}
	addr := opts.ListenAddr
	if addr == "" {
		addr = ":" + strconv.Itoa(DefaultBroadcastPort)
	}

	listener, err := NewListener(addr, opts.DeviceIP, opts.Logger)
	if err != nil {
		return nil, err
	}

	cache := NewStatusCache()
	return &Monitor{
		listener: listener,
		watcher:  NewWatcher(opts.DeviceID, listener, opts.Client, cache, opts.FetchTimeout, opts.Logger),
		cache:    cache,
	}, nil
}

// Start begins watching in the background. Idempotent and non-blocking.
func (m *Monitor) Start() {
	m.watcher.Start()
}

// Status returns the last known door state, Unknown until the first
// successful read. Never blocks.
func (m *Monitor) Status() State {
	return m.cache.Get()
}

// Snapshot returns the last known state with its update time.
func (m *Monitor) Snapshot() Snapshot {
	return m.cache.Snapshot()
}

// Refresh reads the contact now. It returns the resulting state and whether
// the read succeeded; on failure the returned state is the cached one.
// Read errors are logged, not returned.
func (m *Monitor) Refresh(ctx context.Context) (State, bool) {
	state, err := m.watcher.Refresh(ctx)
	return state, err == nil
}

// AddObserver registers an observer for successful readings.
func (m *Monitor) AddObserver(o Observer) {
	m.watcher.AddObserver(o)
}

// Running reports whether the monitor has been started and not closed.
func (m *Monitor) Running() bool {
	return m.watcher.Running()
}

// ListenAddr returns the bound broadcast address.
func (m *Monitor) ListenAddr() net.Addr {
	return m.listener.Addr()
}

// Close stops the watcher and releases the socket.
func (m *Monitor) Close() error {
	m.watcher.Stop()
	return m.listener.Close()
}
