package history

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/doorwatch/internal/sensor"
)

// pruneInterval is how often the retention loop runs.
const pruneInterval = time.Hour

// Recorder writes readings to a Repository. It implements sensor.Observer.
type Recorder struct {
	repo   Repository
	logger sensor.Logger

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRecorder creates a recorder. logger may be nil.
func NewRecorder(repo Repository, logger sensor.Logger) *Recorder {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Recorder{repo: repo, logger: logger}
}

// ObserveState implements sensor.Observer.
func (r *Recorder) ObserveState(ctx context.Context, reading sensor.Reading) error {
	return r.repo.Record(ctx, EntryFromReading(reading))
}

// StartRetention prunes entries older than retention once per hour until Stop.
// A non-positive retention disables pruning. Call at most once.
func (r *Recorder) StartRetention(retention time.Duration) {
	if retention <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()

		r.prune(ctx, retention)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.prune(ctx, retention)
			}
		}
	}()
}

func (r *Recorder) prune(ctx context.Context, retention time.Duration) {
	n, err := r.repo.Prune(ctx, retention)
	if err != nil {
		r.logger.Error("pruning door history failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("pruned door history", "deleted", n, "retention", retention.String())
	}
}

// Stop ends the retention loop, if running.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
	})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
