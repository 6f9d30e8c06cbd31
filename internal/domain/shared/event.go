package shared

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventIDPrefix is prepended to every generated event identifier
const EventIDPrefix = "evt_"

// DomainEvent represents an immutable fact recorded by an aggregate
type DomainEvent interface {
	EventID() string
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	// ProcmanID returns the correlation id of the process manager the event
	// belongs to, or an empty string for uncorrelated events
	ProcmanID() string
}

// BaseDomainEvent provides common fields for all domain events
type BaseDomainEvent struct {
	ID          string    `json:"event_id"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggID       uuid.UUID `json:"aggregate_id"`
	AggType     string    `json:"aggregate_type"`
	Correlation string    `json:"procman_id,omitempty"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() string {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the aggregate that produced this event
func (e *BaseDomainEvent) AggregateID() uuid.UUID {
	return e.AggID
}

// AggregateType returns the type of the aggregate
func (e *BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// ProcmanID returns the process manager correlation id
func (e *BaseDomainEvent) ProcmanID() string {
	return e.Correlation
}

// NewBaseDomainEvent creates a new base domain event
func NewBaseDomainEvent(eventType, aggType string, aggID uuid.UUID, procmanID string) BaseDomainEvent {
	return BaseDomainEvent{
		ID:          NewEventID(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggID:       aggID,
		AggType:     aggType,
		Correlation: procmanID,
	}
}

// NewEventID generates a globally unique event identifier
func NewEventID() string {
	return EventIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewProcmanID generates a correlation id for a new process manager instance
func NewProcmanID() string {
	return uuid.NewString()
}
