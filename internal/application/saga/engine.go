// Package saga drives the long running workflows that span several modules.
//
// A workflow is a Definition: an explicit table mapping each event type it
// reacts to onto one transition. A transition names the state the workflow
// must be in, calls one or more facades and moves the instance forward.
// Definitions hold no state of their own; the ProcessManagerHandler loads the
// persisted instance, runs the definition and saves the result with a
// version check.
package saga

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
)

// Saga errors
var (
	ErrUnhandledEvent     = errors.New("saga: no transition defined for event")
	ErrPreconditionFailed = errors.New("saga: precondition failed")
	ErrAlreadyTerminal    = errors.New("saga: instance already terminal")
	ErrMissingProcmanID   = errors.New("saga: event carries no procman id")
)

// Instance is the working copy of one saga instance handed to a transition
type Instance[D any] struct {
	ID        string
	State     string
	TimeoutAt *time.Time
	Data      D

	now time.Time
}

// NewInstance creates an instance as seen at now
func NewInstance[D any](id, state string, data D, now time.Time) *Instance[D] {
	return &Instance[D]{ID: id, State: state, Data: data, now: now}
}

// Now returns the clock reading the instance was loaded with
func (i *Instance[D]) Now() time.Time {
	return i.now
}

// SetDeadline arms the timeout d from now
func (i *Instance[D]) SetDeadline(d time.Duration) {
	at := i.now.Add(d)
	i.TimeoutAt = &at
}

// IsTerminal reports whether the instance finished or timed out
func (i *Instance[D]) IsTerminal() bool {
	return procman.IsTerminal(i.State)
}

type transitionFunc[D any] func(ctx context.Context, event shared.DomainEvent, inst *Instance[D]) error

type transition[D any] struct {
	from string
	fn   transitionFunc[D]
}

// Definition is the transition table of one saga type
type Definition[D any] struct {
	sagaType    string
	transitions map[string]transition[D]
}

// NewDefinition creates an empty definition for sagaType
func NewDefinition[D any](sagaType string) *Definition[D] {
	return &Definition[D]{
		sagaType:    sagaType,
		transitions: make(map[string]transition[D]),
	}
}

// On binds eventType to a transition that runs only when the instance is in
// state from. The event is asserted to E before fn is called, so fn receives
// the concrete payload. Binding the same event type twice panics; it is a
// wiring bug that must surface at startup.
func On[D any, E shared.DomainEvent](def *Definition[D], eventType, from string, fn func(ctx context.Context, event E, inst *Instance[D]) error) {
	if _, exists := def.transitions[eventType]; exists {
		panic(fmt.Sprintf("saga %s: duplicate transition for %s", def.sagaType, eventType))
	}
	def.transitions[eventType] = transition[D]{
		from: from,
		fn: func(ctx context.Context, event shared.DomainEvent, inst *Instance[D]) error {
			typed, ok := event.(E)
			if !ok {
				return fmt.Errorf("saga %s: %s has unexpected payload %T", def.sagaType, eventType, event)
			}
			return fn(ctx, typed, inst)
		},
	}
}

// SagaType returns the type name stored with every instance
func (d *Definition[D]) SagaType() string {
	return d.sagaType
}

// EventTypes returns the event types the definition has transitions for
func (d *Definition[D]) EventTypes() []string {
	types := make([]string, 0, len(d.transitions))
	for t := range d.transitions {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Handle runs the transition bound to the event's type. The instance is
// mutated in place; nothing is persisted here.
func (d *Definition[D]) Handle(ctx context.Context, event shared.DomainEvent, inst *Instance[D]) error {
	t, ok := d.transitions[event.EventType()]
	if !ok {
		return fmt.Errorf("saga %s: %s: %w", d.sagaType, event.EventType(), ErrUnhandledEvent)
	}
	if inst.State != t.from {
		return fmt.Errorf("saga %s: %s expects state %q, instance %s is in %q: %w",
			d.sagaType, event.EventType(), t.from, inst.ID, inst.State, ErrPreconditionFailed)
	}
	return t.fn(ctx, event, inst)
}

// Timeout forces a running instance into TIMED_OUT
func (d *Definition[D]) Timeout(inst *Instance[D]) error {
	if inst.IsTerminal() {
		return fmt.Errorf("saga %s: instance %s is %s: %w", d.sagaType, inst.ID, inst.State, ErrAlreadyTerminal)
	}
	inst.State = procman.StateTimedOut
	inst.TimeoutAt = nil
	return nil
}
