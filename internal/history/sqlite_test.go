package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/doorwatch/internal/infrastructure/database"
	"github.com/nerrad567/doorwatch/internal/sensor"
	"github.com/nerrad567/doorwatch/migrations"
)

// setupRepo opens an in-memory database with the real schema.
func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	base := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

	entries := []Entry{
		{DeviceID: "door-1", State: sensor.Closed, Previous: sensor.Unknown, Changed: true, EventID: "e1", CreatedAt: base},
		{DeviceID: "door-1", State: sensor.Open, Previous: sensor.Closed, Changed: true, EventID: "e2", CreatedAt: base.Add(time.Minute)},
		{DeviceID: "door-2", State: sensor.Open, CreatedAt: base.Add(2 * time.Minute)},
		{DeviceID: "door-1", State: sensor.Open, Previous: sensor.Open, Source: sensor.SourceRefresh, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record(%+v) error = %v", e, err)
		}
	}

	got, err := repo.Recent(ctx, "door-1", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent() returned %d entries, want 3", len(got))
	}

	newest := got[0]
	if newest.Source != sensor.SourceRefresh || newest.Changed || newest.State != sensor.Open {
		t.Errorf("newest = %+v, want unchanged refresh reading", newest)
	}
	if !newest.CreatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("newest CreatedAt = %v", newest.CreatedAt)
	}

	oldest := got[2]
	if oldest.State != sensor.Closed || oldest.Previous != sensor.Unknown || oldest.EventID != "e1" {
		t.Errorf("oldest = %+v", oldest)
	}
	if oldest.Source != sensor.SourceBroadcast {
		t.Errorf("default source = %q, want %q", oldest.Source, sensor.SourceBroadcast)
	}
}

func TestSQLiteRepository_RecentLimit(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)
	base := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

	for i := 0; i < MaxLimit+5; i++ {
		err := repo.Record(ctx, Entry{DeviceID: "door-1", State: sensor.Open, CreatedAt: base.Add(time.Duration(i) * time.Second)})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: DefaultLimit},
		{limit: -1, want: DefaultLimit},
		{limit: 5, want: 5},
		{limit: MaxLimit + 100, want: MaxLimit},
	}
	for _, tt := range tests {
		got, err := repo.Recent(ctx, "door-1", tt.limit)
		if err != nil {
			t.Fatalf("Recent(%d) error = %v", tt.limit, err)
		}
		if len(got) != tt.want {
			t.Errorf("Recent(%d) returned %d, want %d", tt.limit, len(got), tt.want)
		}
	}
}

func TestSQLiteRepository_Validation(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	if err := repo.Record(ctx, Entry{State: sensor.Open}); !errors.Is(err, ErrDeviceRequired) {
		t.Errorf("Record(no device) error = %v, want ErrDeviceRequired", err)
	}
	if err := repo.Record(ctx, Entry{DeviceID: "door-1"}); err == nil {
		t.Error("Record(unknown state) error = nil, want error")
	}
	if _, err := repo.Recent(ctx, "", 10); !errors.Is(err, ErrDeviceRequired) {
		t.Errorf("Recent(no device) error = %v, want ErrDeviceRequired", err)
	}
	if _, err := repo.Prune(ctx, 0); err == nil {
		t.Error("Prune(0) error = nil, want error")
	}
}

func TestSQLiteRepository_Prune(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	for _, age := range []time.Duration{72 * time.Hour, 48 * time.Hour, time.Hour} {
		if err := repo.Record(ctx, Entry{DeviceID: "door-1", State: sensor.Closed, CreatedAt: now.Add(-age)}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted %d, want 2", deleted)
	}

	left, err := repo.Recent(ctx, "door-1", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(left) != 1 {
		t.Errorf("remaining entries = %d, want 1", len(left))
	}
}

func TestSQLiteRepository_DefaultTimestamp(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	now := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	if err := repo.Record(ctx, Entry{DeviceID: "door-1", State: sensor.Open}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	got, err := repo.Recent(ctx, "door-1", 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent() = %v, %v", got, err)
	}
	if !got[0].CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, now)
	}
}
