// Package procman holds the persisted state of process managers (sagas).
// A record is keyed by its procman id and carries the saga specific data as
// an opaque JSON document next to a version used for compare-and-swap saves.
package procman

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Terminal states shared by every saga
const (
	StateStarted  = ""
	StateFinished = "FINISHED"
	StateTimedOut = "TIMED_OUT"
)

// IsTerminal reports whether no further transitions are defined out of state
func IsTerminal(state string) bool {
	return state == StateFinished || state == StateTimedOut
}

// ProcessManager is the persisted state of one saga instance
type ProcessManager struct {
	ID              string
	SagaType        string
	State           string
	TimeoutAt       *time.Time
	Data            json.RawMessage
	ProcessedEvents []string
	// Version is 0 for a record that was never saved and is incremented by
	// every successful Save
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an unsaved process manager in the started state
func New(id, sagaType string) *ProcessManager {
	now := time.Now().UTC()
	return &ProcessManager{
		ID:              id,
		SagaType:        sagaType,
		State:           StateStarted,
		Data:            json.RawMessage("{}"),
		ProcessedEvents: make([]string, 0),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsNew returns true if the record has never been persisted
func (pm *ProcessManager) IsNew() bool {
	return pm.Version == 0
}

// IsTerminal returns true once the saga finished or timed out
func (pm *ProcessManager) IsTerminal() bool {
	return IsTerminal(pm.State)
}

// HasProcessed reports whether the event was already applied
func (pm *ProcessManager) HasProcessed(eventID string) bool {
	return slices.Contains(pm.ProcessedEvents, eventID)
}

// MarkProcessed remembers an applied event id
func (pm *ProcessManager) MarkProcessed(eventID string) {
	if eventID == "" || pm.HasProcessed(eventID) {
		return
	}
	pm.ProcessedEvents = append(pm.ProcessedEvents, eventID)
}

// IsOverdue reports whether the saga is still running past its deadline
func (pm *ProcessManager) IsOverdue(now time.Time) bool {
	return !pm.IsTerminal() && pm.TimeoutAt != nil && !pm.TimeoutAt.After(now)
}

// Transition is one entry of a process manager's audit history
type Transition struct {
	ID         uuid.UUID
	ProcmanID  string
	SagaType   string
	EventID    string
	EventType  string
	FromState  string
	ToState    string
	TraceID    string
	SpanID     string
	OccurredAt time.Time
}

// NewTransition creates a history entry for a handled event
func NewTransition(pm *ProcessManager, eventID, eventType, from string) *Transition {
	return &Transition{
		ID:         uuid.New(),
		ProcmanID:  pm.ID,
		SagaType:   pm.SagaType,
		EventID:    eventID,
		EventType:  eventType,
		FromState:  from,
		ToState:    pm.State,
		OccurredAt: time.Now().UTC(),
	}
}
