package sensor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/doorwatch/internal/tuya"
)

const (
	// DefaultFetchTimeout bounds one contact read.
	DefaultFetchTimeout = 10 * time.Second

	// restartDelay is the pause before resuming after a socket error.
	restartDelay = time.Second
)

// Watcher turns device broadcasts into cached contact readings.
//
// It owns a background context that lives from construction until Stop.
// Fetches are serialised: broadcasts are handled one at a time in arrival
// order, and Refresh waits for any fetch in progress.
type Watcher struct {
	deviceID     string
	listener     *Listener
	client       tuya.Client
	cache        *StatusCache
	fetchTimeout time.Duration
	logger       Logger

	obsMu     sync.RWMutex
	observers []Observer

	fetchMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	done      chan struct{}
}

// NewWatcher creates a watcher. It does not start listening until Start.
func NewWatcher(deviceID string, listener *Listener, client tuya.Client, cache *StatusCache, fetchTimeout time.Duration, logger Logger) *Watcher {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		deviceID:     deviceID,
		listener:     listener,
		client:       client,
		cache:        cache,
		fetchTimeout: fetchTimeout,
		logger:       orNop(logger),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// AddObserver registers an observer for successful readings.
func (w *Watcher) AddObserver(o Observer) {
	if o == nil {
		return
	}
	w.obsMu.Lock()
	w.observers = append(w.observers, o)
	w.obsMu.Unlock()
}

// Start launches the receive loop and returns immediately.
// Subsequent calls do nothing.
func (w *Watcher) Start() {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.loop()
	})
}

// Stop cancels the background context, closes the listener and waits for the
// receive loop to exit. Safe to call more than once, and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		_ = w.listener.Close()
		if w.started.Load() {
			<-w.done
		}
	})
}

// Running reports whether the receive loop has been started and not stopped.
func (w *Watcher) Running() bool {
	return w.started.Load() && w.ctx.Err() == nil
}

func (w *Watcher) loop() {
	defer close(w.done)

	w.logger.Info("listening for device broadcasts",
		"addr", w.listener.Addr().String(),
		"device_id", w.deviceID,
	)

	for {
		err := w.listener.Run(w.ctx, w.handleEvent)
		if w.ctx.Err() != nil {
			return
		}
		if err == nil {
			// Listener closed underneath us.
			w.logger.Warn("broadcast listener closed")
			return
		}

		w.logger.Error("broadcast listener failed, restarting", "error", err)
		select {
		case <-w.ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

func (w *Watcher) handleEvent(ev Event) {
	w.logger.Debug("device powered on, updating status",
		"event_id", ev.ID,
		"source", ev.Source.String(),
	)
	_, _ = w.fetch(w.ctx, ev.ID, SourceBroadcast)
}

// Refresh reads the contact immediately, outside the broadcast cycle.
// It follows the same rules as a broadcast-triggered read: on failure the
// error is logged and returned, and the cache is left unchanged.
func (w *Watcher) Refresh(ctx context.Context) (State, error) {
	return w.fetch(ctx, "", SourceRefresh)
}

// fetch performs one bounded read and, on success, updates the cache and
// notifies observers.
func (w *Watcher) fetch(ctx context.Context, eventID, source string) (State, error) {
	w.fetchMu.Lock()
	defer w.fetchMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
	defer cancel()

	open, err := w.client.ReadContact(fetchCtx)
	if err != nil {
		w.logFetchError(err, eventID, source)
		return w.cache.Get(), err
	}

	state := StateFromContact(open)
	previous := w.cache.Get()
	w.cache.Set(state)

	changed := previous != state
	w.logger.Info("door state",
		"state", state.Label(),
		"changed", changed,
		"device_id", w.deviceID,
		"source", source,
		"event_id", eventID,
	)

	w.notify(ctx, Reading{
		DeviceID:   w.deviceID,
		State:      state,
		Previous:   previous,
		Changed:    changed,
		EventID:    eventID,
		Source:     source,
		ObservedAt: w.cache.Snapshot().UpdatedAt,
	})

	return state, nil
}

func (w *Watcher) logFetchError(err error, eventID, source string) {
	args := []any{
		"error", err,
		"device_id", w.deviceID,
		"source", source,
		"event_id", eventID,
	}

	var tErr *tuya.Error
	if errors.As(err, &tErr) {
		args = append(args, "code", tErr.Code, "msg", tErr.Message)
	}

	w.logger.Error("failed to read door contact", args...)
}

func (w *Watcher) notify(ctx context.Context, r Reading) {
	w.obsMu.RLock()
	observers := make([]Observer, len(w.observers))
	copy(observers, w.observers)
	w.obsMu.RUnlock()

	for _, o := range observers {
		if err := o.ObserveState(ctx, r); err != nil {
			w.logger.Warn("state observer failed",
				"error", err,
				"event_id", r.EventID,
			)
		}
	}
}
