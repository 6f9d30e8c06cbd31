package event

import (
	"context"
	"errors"
	"testing"

	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func committed(t *testing.T, repo *memoryOutboxRepository, events ...shared.DomainEvent) []*shared.OutboxEntry {
	t.Helper()
	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, shared.NewOutboxEntry(e, []byte(`{}`)))
	}
	require.NoError(t, repo.Save(context.Background(), entries...))
	return entries
}

func TestCommittedEventDispatcher_PublishesThenAcknowledges(t *testing.T) {
	repo := newMemoryOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	event := newTestEvent("TestEvent", "pm-1")
	entries := committed(t, repo, event)

	dispatcher := NewCommittedEventDispatcher(bus, ImmediateRunner{}, repo, zap.NewNop())
	err := dispatcher.Dispatch(context.Background(), entries, []shared.DomainEvent{event})

	require.NoError(t, err)
	assert.Len(t, handler.getHandled(), 1)
	assert.Equal(t, shared.OutboxStatusSent, repo.status(entries[0].ID))
}

func TestCommittedEventDispatcher_HandlerFailureLeavesEntriesPending(t *testing.T) {
	repo := newMemoryOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	handler.setError(errors.New("boom"))
	bus.Subscribe(handler)

	event := newTestEvent("TestEvent", "pm-1")
	entries := committed(t, repo, event)

	dispatcher := NewCommittedEventDispatcher(bus, ImmediateRunner{}, repo, zap.NewNop())
	err := dispatcher.Dispatch(context.Background(), entries, []shared.DomainEvent{event})

	require.Error(t, err)
	assert.Equal(t, shared.OutboxStatusPending, repo.status(entries[0].ID))
	assert.Empty(t, repo.markSentCalls)
}

func TestCommittedEventDispatcher_AckRunsAfterDeferredHandlers(t *testing.T) {
	repo := newMemoryOutboxRepository()
	runner := QueueRunner{}
	bus := NewInMemoryEventBus(zap.NewNop(), WithRunner(runner))

	var journal []string
	event := newTestEvent("TestEvent", "pm-1")
	entries := committed(t, repo, event)

	deferred := &shared.EventHandlerFunc{
		Types: []string{"TestEvent"},
		Fn: func(ctx context.Context, e shared.DomainEvent) error {
			journal = append(journal, "deferred:"+string(repo.status(entries[0].ID)))
			return nil
		},
	}
	bus.SubscribeDeferred(deferred)

	dispatcher := NewCommittedEventDispatcher(bus, runner, repo, zap.NewNop())
	err := runner.Run(context.Background(), func(ctx context.Context) error {
		return dispatcher.Dispatch(ctx, entries, []shared.DomainEvent{event})
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"deferred:PENDING"}, journal)
	assert.Equal(t, shared.OutboxStatusSent, repo.status(entries[0].ID))
}

func TestCommittedEventDispatcher_DeferredFailureSkipsAck(t *testing.T) {
	repo := newMemoryOutboxRepository()
	runner := QueueRunner{}
	bus := NewInMemoryEventBus(zap.NewNop(), WithRunner(runner))

	event := newTestEvent("TestEvent", "pm-1")
	entries := committed(t, repo, event)

	bus.SubscribeDeferred(&shared.EventHandlerFunc{
		Types: []string{"TestEvent"},
		Fn: func(ctx context.Context, e shared.DomainEvent) error {
			return errors.New("saga conflict")
		},
	})

	dispatcher := NewCommittedEventDispatcher(bus, runner, repo, zap.NewNop())
	err := dispatcher.Dispatch(context.Background(), entries, []shared.DomainEvent{event})

	require.Error(t, err)
	assert.Equal(t, shared.OutboxStatusPending, repo.status(entries[0].ID))
}

func TestCommittedEventDispatcher_NoEvents(t *testing.T) {
	repo := newMemoryOutboxRepository()
	dispatcher := NewCommittedEventDispatcher(NewInMemoryEventBus(zap.NewNop()), nil, repo, zap.NewNop())

	require.NoError(t, dispatcher.Dispatch(context.Background(), nil, nil))
	assert.Empty(t, repo.markSentCalls)
}
