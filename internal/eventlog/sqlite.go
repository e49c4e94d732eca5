package eventlog

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-basestation/internal/infrastructure/database"
)

// SQLiteStore appends events to the eventdata table.
//
// The table is created by the embedded migrations; run db.Migrate before
// inserting. The store does not own db and Close leaves it open.
type SQLiteStore struct {
	db    *database.DB
	runID string
}

// NewSQLiteStore returns a store writing to db. runID is recorded with every
// row so events from different server runs, whose device ids restart at 10,
// can be told apart.
func NewSQLiteStore(db *database.DB, runID string) *SQLiteStore {
	return &SQLiteStore{db: db, runID: runID}
}

// InsertEvent appends one row.
func (s *SQLiteStore) InsertEvent(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO eventdata (time, dev_id, dev_info, priority, description, run_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp(), e.DeviceID, e.DeviceInfo, uint8(e.Priority), e.Description, s.runID,
	)
	if err != nil {
		return fmt.Errorf("inserting event for device %d: %w", e.DeviceID, err)
	}
	return nil
}

// Count returns the number of stored events across all runs.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM eventdata").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

// Recent returns up to limit events, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time, dev_id, dev_info, priority, description
		 FROM eventdata ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.Time, &r.DeviceID, &r.DeviceInfo, &r.Priority, &r.Description); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e, err := r.event()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// Close is a no-op; the database is closed by its owner.
func (s *SQLiteStore) Close() error {
	return nil
}
