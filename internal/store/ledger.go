package store

import (
	"context"
	"fmt"
	"time"
)

// DeliveryKey identifies one termination event: the padded registration
// number plus the DD/MM/YYYY event date.
type DeliveryKey struct {
	EmployeeNo string
	EventDate  string
}

// DeliveredEvent is one ledger row, for reporting.
type DeliveredEvent struct {
	EmployeeNo  string
	EventDate   string
	FullName    string
	DeliveredAt time.Time
}

// Delivered reports whether the termination identified by key was already
// sent. Terminations are not idempotent downstream; once a key is present it
// must never be dispatched again.
func (s *Store) Delivered(ctx context.Context, key DeliveryKey) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM delivered_terminations
		WHERE employee_no = ? AND event_date = ?
	`, key.EmployeeNo, key.EventDate).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return count > 0, nil
}

// DeliveredSet loads every delivered key for batch filtering.
func (s *Store) DeliveredSet(ctx context.Context) (map[DeliveryKey]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_no, event_date FROM delivered_terminations
	`)
	if err != nil {
		return nil, fmt.Errorf("ledger set: %w", err)
	}
	defer rows.Close()

	set := make(map[DeliveryKey]struct{})
	for rows.Next() {
		var key DeliveryKey
		if err := rows.Scan(&key.EmployeeNo, &key.EventDate); err != nil {
			return nil, fmt.Errorf("ledger set: %w", err)
		}
		set[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger set: %w", err)
	}
	return set, nil
}

// MarkDelivered records a termination as sent. ON CONFLICT DO NOTHING gives
// INSERT OR IGNORE semantics: repeated commits of the same key are no-ops,
// never errors. Only called after the dispatcher confirms success for that
// specific event.
func (s *Store) MarkDelivered(ctx context.Context, key DeliveryKey, fullName string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivered_terminations (employee_no, event_date, full_name, delivered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (employee_no, event_date) DO NOTHING
	`, key.EmployeeNo, key.EventDate, fullName, at.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ledger commit: %w", err)
	}
	return nil
}

// History returns every delivered termination, most recent first.
func (s *Store) History(ctx context.Context) ([]DeliveredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_no, event_date, full_name, delivered_at
		FROM delivered_terminations
		ORDER BY delivered_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	defer rows.Close()

	var events []DeliveredEvent
	for rows.Next() {
		var (
			ev          DeliveredEvent
			deliveredAt string
		)
		if err := rows.Scan(&ev.EmployeeNo, &ev.EventDate, &ev.FullName, &deliveredAt); err != nil {
			return nil, fmt.Errorf("ledger history: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, deliveredAt); err == nil {
			ev.DeliveredAt = ts
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger history: %w", err)
	}
	return events, nil
}

// LedgerCount returns the number of ledger rows, for the cache status
// report.
func (s *Store) LedgerCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivered_terminations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ledger count: %w", err)
	}
	return count, nil
}
