package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/doorwatch/internal/sensor"
)

// SQLiteRepository implements Repository on the door_history table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record implements Repository.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.DeviceID == "" {
		return ErrDeviceRequired
	}
	if e.State == sensor.Unknown {
		return fmt.Errorf("history: cannot record unknown state")
	}
	if e.Source == "" {
		e.Source = sensor.SourceBroadcast
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO door_history (device_id, state, previous, changed, event_id, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.DeviceID,
		e.State.String(),
		e.Previous.String(),
		e.Changed,
		e.EventID,
		e.Source,
		e.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting door history: %w", err)
	}
	return nil
}

// Recent implements Repository.
func (r *SQLiteRepository) Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if deviceID == "" {
		return nil, ErrDeviceRequired
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, state, previous, changed, event_id, source, created_at
		 FROM door_history
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying door history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e               Entry
			state, previous string
			createdMS       int64
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &state, &previous, &e.Changed, &e.EventID, &e.Source, &createdMS); err != nil {
			return nil, fmt.Errorf("scanning door history: %w", err)
		}
		if err := e.State.UnmarshalText([]byte(state)); err != nil {
			return nil, err
		}
		if err := e.Previous.UnmarshalText([]byte(previous)); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(createdMS).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating door history: %w", err)
	}

	return entries, nil
}

// Prune implements Repository.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("history: retention must be positive")
	}

	cutoff := r.now().UTC().Add(-olderThan).UnixMilli()
	res, err := r.db.ExecContext(ctx, "DELETE FROM door_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning door history: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
