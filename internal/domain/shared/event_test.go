package shared

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewEventID()
		require.True(t, strings.HasPrefix(id, EventIDPrefix))
		assert.Len(t, id, len(EventIDPrefix)+32)
		_, dup := seen[id]
		require.False(t, dup, "duplicate event id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewBaseDomainEvent(t *testing.T) {
	aggID := uuid.New()
	evt := NewBaseDomainEvent("ShopRegistrationCreated", "ShopRegistration", aggID, "R1")

	assert.Equal(t, "ShopRegistrationCreated", evt.EventType())
	assert.Equal(t, "ShopRegistration", evt.AggregateType())
	assert.Equal(t, aggID, evt.AggregateID())
	assert.Equal(t, "R1", evt.ProcmanID())
	assert.False(t, evt.OccurredAt().IsZero())
	assert.NotEmpty(t, evt.EventID())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", ErrorCode(ErrNotFound))
	assert.Equal(t, "CONCURRENCY_CONFLICT", ErrorCode(fmt.Errorf("save: %w", ErrConcurrencyConflict)))
	assert.Equal(t, "INTERNAL", ErrorCode(errors.New("boom")))
}

func TestBaseAggregateRoot_PullDomainEvents(t *testing.T) {
	root := NewBaseAggregateRoot()
	e1 := NewBaseDomainEvent("A", "X", root.ID, "")
	e2 := NewBaseDomainEvent("B", "X", root.ID, "")
	root.AddDomainEvent(&e1)
	root.AddDomainEvent(&e2)

	events := root.PullDomainEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].EventType())
	assert.Empty(t, root.PendingEvents())
}
