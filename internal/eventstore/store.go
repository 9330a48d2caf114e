package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves cycle events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, ev Event) error

	// GetByCycleID retrieves all events of one cycle, oldest first.
	GetByCycleID(ctx context.Context, cycleID string) ([]Event, error)

	// GetByBundle retrieves the newest limit events of a bundle, oldest first.
	// A limit of zero or less returns every event.
	GetByBundle(ctx context.Context, bundle string, limit int) ([]Event, error)

	// GetRange retrieves events within a time range, oldest first.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
