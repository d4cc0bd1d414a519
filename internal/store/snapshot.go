package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Snapshot is the single cached copy of the upstream feed: the serialized
// record set, its count and the write timestamp. Overwritten on every
// successful fetch; the cache layer decides validity from WrittenAt.
type Snapshot struct {
	Payload   []byte
	Count     int
	WrittenAt time.Time
}

// ReadSnapshot returns the cached feed payload, or (nil, nil) when no
// snapshot has been written yet.
func (s *Store) ReadSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		payload   []byte
		count     int
		writtenAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, record_count, written_at FROM feed_snapshot WHERE id = 1
	`).Scan(&payload, &count, &writtenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, writtenAt)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: bad timestamp %q: %w", writtenAt, err)
	}

	return &Snapshot{Payload: payload, Count: count, WrittenAt: ts}, nil
}

// WriteSnapshot overwrites the cached feed payload, stamping it with at.
func (s *Store) WriteSnapshot(ctx context.Context, payload []byte, count int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO feed_snapshot (id, payload, record_count, written_at)
		VALUES (1, ?, ?, ?)
	`, payload, count, at.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ClearSnapshot drops the cached feed payload. Maintenance operation; the
// next run fetches from the API again.
func (s *Store) ClearSnapshot(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM feed_snapshot`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}
