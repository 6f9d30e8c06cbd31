package procman

import (
	"context"
	"time"
)

// Repository persists process manager state
type Repository interface {
	// FindByID returns the record or found=false
	FindByID(ctx context.Context, id string) (*ProcessManager, bool, error)
	// GetOrCreate loads the record or returns a fresh unsaved one in the
	// started state. A stored record of another saga type is an error.
	GetOrCreate(ctx context.Context, id, sagaType string) (*ProcessManager, error)
	// Save inserts a new record or updates an existing one if its stored
	// version still equals pm.Version, returning
	// shared.ErrConcurrencyConflict otherwise. The transition, if any, is
	// appended to the history in the same transaction. On success
	// pm.Version is incremented.
	Save(ctx context.Context, pm *ProcessManager, transition *Transition) error
	// FindTimedOut returns non-terminal records whose deadline is <= now
	FindTimedOut(ctx context.Context, now time.Time, limit int) ([]*ProcessManager, error)
	// History returns the transitions of a record, oldest first
	History(ctx context.Context, id string) ([]*Transition, error)
	// CountByState returns the number of records per saga type and state
	CountByState(ctx context.Context) ([]StateCount, error)
}

// StateCount is one row of CountByState
type StateCount struct {
	SagaType string `json:"saga_type"`
	State    string `json:"state"`
	Count    int64  `json:"count"`
}
