// Package testutil holds fixtures shared by the integration suites.
package testutil

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// NewProcmanID returns a fresh correlation id such as "reg-<uuid>", so
// suites sharing a database never collide.
func NewProcmanID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// ContextWithTimeout is cancelled after timeout or when the test ends
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Event is a bare domain event for tests that only need the envelope
type Event struct {
	shared.BaseDomainEvent
	Note string `json:"note,omitempty"`
}

func NewTestEvent(eventType, procmanID string) *Event {
	return &Event{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Test", uuid.New(), procmanID)}
}

// Recorder is an event handler that keeps what it sees. With no types it
// suits SubscribeAll.
type Recorder struct {
	types []string

	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewRecorder(eventTypes ...string) *Recorder {
	return &Recorder{types: eventTypes}
}

func (r *Recorder) EventTypes() []string { return r.types }

func (r *Recorder) Handle(_ context.Context, evt shared.DomainEvent) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Types lists the recorded event types in arrival order
func (r *Recorder) Types() []string {
	events := r.Events()
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType()
	}
	return types
}
