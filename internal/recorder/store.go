// Package recorder persists recognized gesture events to SQLite so they
// can be reviewed or exported as training data later.
package recorder

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one recognized gesture for one hand in one frame.
type Event struct {
	ID          string
	TimestampMs int64
	HandIndex   int
	Handedness  string
	Gesture     string
	Score       float64
	Landmarks   string // JSON-encoded xyz triples
	CreatedAt   time.Time
}

// Store is a SQLite-backed event log.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the event database at dbPath and runs
// migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) runMigrations() error {
	migrations := []string{
		// Gesture events - one row per recognized hand per frame
		`CREATE TABLE IF NOT EXISTS gesture_events (
			id TEXT PRIMARY KEY,
			timestamp_ms INTEGER NOT NULL,
			hand_index INTEGER NOT NULL,
			handedness TEXT NOT NULL,
			gesture TEXT NOT NULL,
			score REAL NOT NULL,
			landmarks TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_gesture_events_gesture ON gesture_events(gesture)`,
		`CREATE INDEX IF NOT EXISTS idx_gesture_events_timestamp ON gesture_events(timestamp_ms)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// Record inserts a batch of events in a single transaction.
func (s *Store) Record(events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO gesture_events (id, timestamp_ms, hand_index, handedness, gesture, score, landmarks)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.ID, e.TimestampMs, e.HandIndex, e.Handedness, e.Gesture, e.Score, e.Landmarks); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(limit int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, timestamp_ms, hand_index, handedness, gesture, score, landmarks, created_at
		 FROM gesture_events ORDER BY timestamp_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TimestampMs, &e.HandIndex, &e.Handedness,
			&e.Gesture, &e.Score, &e.Landmarks, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// PruneBefore deletes events older than the given timestamp. Returns the
// number of rows removed.
func (s *Store) PruneBefore(timestampMs int64) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM gesture_events WHERE timestamp_ms < ?`, timestampMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
