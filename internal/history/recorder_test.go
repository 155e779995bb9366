package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/doorwatch/internal/sensor"
)

type fakeRepo struct {
	mu       sync.Mutex
	recorded []Entry
	prunes   int
	pruned   chan struct{}
}

func (f *fakeRepo) Record(_ context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, e)
	return nil
}

func (f *fakeRepo) Recent(context.Context, string, int) ([]Entry, error) {
	return nil, nil
}

func (f *fakeRepo) Prune(context.Context, time.Duration) (int64, error) {
	f.mu.Lock()
	f.prunes++
	f.mu.Unlock()
	if f.pruned != nil {
		f.pruned <- struct{}{}
	}
	return 1, nil
}

func TestRecorder_ObserveState(t *testing.T) {
	repo := &fakeRepo{}
	rec := NewRecorder(repo, nil)

	observed := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	err := rec.ObserveState(context.Background(), sensor.Reading{
		DeviceID:   "door-1",
		State:      sensor.Open,
		Previous:   sensor.Closed,
		Changed:    true,
		EventID:    "evt",
		Source:     sensor.SourceBroadcast,
		ObservedAt: observed,
	})
	if err != nil {
		t.Fatalf("ObserveState() error = %v", err)
	}

	if len(repo.recorded) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(repo.recorded))
	}
	e := repo.recorded[0]
	if e.DeviceID != "door-1" || e.State != sensor.Open || e.Previous != sensor.Closed || !e.Changed || e.EventID != "evt" {
		t.Errorf("entry = %+v", e)
	}
	if !e.CreatedAt.Equal(observed) {
		t.Errorf("CreatedAt = %v, want %v", e.CreatedAt, observed)
	}
}

func TestRecorder_Retention(t *testing.T) {
	repo := &fakeRepo{pruned: make(chan struct{}, 1)}
	rec := NewRecorder(repo, nil)

	rec.StartRetention(24 * time.Hour)

	select {
	case <-repo.pruned:
	case <-time.After(2 * time.Second):
		t.Fatal("initial prune did not run")
	}

	rec.Stop()
	rec.Stop()
}

func TestRecorder_RetentionDisabled(t *testing.T) {
	repo := &fakeRepo{}
	rec := NewRecorder(repo, nil)

	rec.StartRetention(0)
	rec.Stop()

	if repo.prunes != 0 {
		t.Errorf("prunes = %d, want 0", repo.prunes)
	}
}
