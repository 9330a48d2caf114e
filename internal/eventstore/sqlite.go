package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed journal.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, wrap(err, ErrDatabaseOpenFailed).WithContext("path", dbPath).Build()
	}
	// Every connection to ":memory:" opens its own database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, wrap(err, ErrInitializeSchemaFailed).WithContext("path", dbPath).Build()
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		bundle TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_id ON events(cycle_id);
	CREATE INDEX IF NOT EXISTS idx_bundle ON events(bundle);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new event to the store. A zero timestamp is stamped with the
// current time.
func (s *SQLiteStore) Append(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if md := ev.Metadata(); md != nil {
		var err error
		metadataJSON, err = json.Marshal(md)
		if err != nil {
			return wrap(err, ErrMarshalPayloadFailed).WithContext("cycle_id", ev.CycleID()).Build()
		}
	}

	ts := ev.Timestamp()
	if ts.IsZero() {
		ts = time.Now()
	}
	payload := ev.Payload()
	if payload == nil {
		payload = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (cycle_id, bundle, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?, ?)",
		ev.CycleID(), ev.Bundle(), ev.Type(), ts.UnixMilli(), payload, metadataJSON,
	)
	if err != nil {
		return wrap(err, ErrEventAppendFailed).
			WithContext("cycle_id", ev.CycleID()).
			WithContext("event_type", ev.Type()).
			Build()
	}

	return nil
}

const selectColumns = "SELECT id, cycle_id, bundle, event_type, timestamp, payload, metadata FROM events"

// GetByCycleID retrieves all events for a specific cycle.
func (s *SQLiteStore) GetByCycleID(ctx context.Context, cycleID string) ([]Event, error) {
	return s.query(ctx, selectColumns+" WHERE cycle_id = ? ORDER BY id", cycleID)
}

// GetByBundle retrieves the newest limit events of a bundle, oldest first.
func (s *SQLiteStore) GetByBundle(ctx context.Context, bundle string, limit int) ([]Event, error) {
	if limit <= 0 {
		return s.query(ctx, selectColumns+" WHERE bundle = ? ORDER BY id", bundle)
	}
	return s.query(ctx,
		"SELECT * FROM ("+selectColumns+" WHERE bundle = ? ORDER BY id DESC LIMIT ?) ORDER BY id",
		bundle, limit)
}

// GetRange retrieves events within a time range.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx,
		selectColumns+" WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli())
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap(err, ErrEventQueryFailed).Build()
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

func (s *SQLiteStore) scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e BaseEvent
		var timestampMilli int64
		var metadataJSON []byte

		err := rows.Scan(&e.EventID, &e.EventCycleID, &e.EventBundle, &e.EventType, &timestampMilli, &e.EventPayload, &metadataJSON)
		if err != nil {
			return nil, wrap(err, ErrEventQueryFailed).Build()
		}

		e.EventTimestamp = time.UnixMilli(timestampMilli)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.EventMetadata); err != nil {
				return nil, wrap(err, ErrEventQueryFailed).WithContext("event_id", e.EventID).Build()
			}
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap(err, ErrEventQueryFailed).Build()
	}

	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
