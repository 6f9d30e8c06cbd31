package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) RecordRelay(ctx context.Context, eventType, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

// staleEntry builds a row written age ago. The payload is encoded directly
// so rows of unregistered types can be staged too.
func staleEntry(t *testing.T, eventType string, age time.Duration) *shared.OutboxEntry {
	t.Helper()
	event := newTestEvent(eventType, "pm-relay")
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(event, payload)
	entry.CreatedAt = entry.CreatedAt.Add(-age)
	return entry
}

func newRelay(repo shared.OutboxRepository, bus shared.EventPublisher, serializer *EventSerializer) *OutboxProcessor {
	config := DefaultOutboxProcessorConfig()
	config.GracePeriod = 10 * time.Second
	return NewOutboxProcessor(repo, bus, serializer, config, zap.NewNop())
}

func TestOutboxProcessor_RelaysStalePendingEntries(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})
	repo := newMemoryOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	entry := staleEntry(t, "TestEvent", time.Minute)
	require.NoError(t, repo.Save(context.Background(), entry))

	observer := &recordingObserver{}
	relay := newRelay(repo, bus, serializer)
	relay.SetObserver(observer)

	relay.ProcessBatch(context.Background(), time.Now().UTC())

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, entry.EventID, handler.getHandled()[0].EventID())
	assert.Equal(t, shared.OutboxStatusSent, repo.status(entry.ID))
	assert.Equal(t, []string{RelayResultSent}, observer.results)
}

func TestOutboxProcessor_SkipsEntriesInsideGracePeriod(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})
	repo := newMemoryOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	entry := staleEntry(t, "TestEvent", 0)
	require.NoError(t, repo.Save(context.Background(), entry))

	newRelay(repo, bus, serializer).ProcessBatch(context.Background(), time.Now().UTC())

	assert.Empty(t, handler.getHandled())
	assert.Equal(t, shared.OutboxStatusPending, repo.status(entry.ID))
}

func TestOutboxProcessor_PublishFailureSchedulesRetry(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})
	repo := newMemoryOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	handler.setError(errors.New("precondition failed"))
	bus.Subscribe(handler)

	entry := staleEntry(t, "TestEvent", time.Minute)
	require.NoError(t, repo.Save(context.Background(), entry))

	observer := &recordingObserver{}
	relay := newRelay(repo, bus, serializer)
	relay.SetObserver(observer)
	relay.ProcessBatch(context.Background(), time.Now().UTC())

	stored, err := repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.LastError, "precondition failed")
	require.NotNil(t, stored.NextRetryAt)
	assert.Equal(t, []string{RelayResultFailed}, observer.results)

	// Due retries are picked up on a later pass.
	handler.setError(nil)
	relay.ProcessBatch(context.Background(), stored.NextRetryAt.Add(time.Millisecond))
	assert.Equal(t, shared.OutboxStatusSent, repo.status(entry.ID))
}

func TestOutboxProcessor_ExhaustedRetriesBecomeDead(t *testing.T) {
	serializer := NewEventSerializer()
	repo := newMemoryOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())

	entry := staleEntry(t, "Unregistered", time.Minute)
	entry.MaxRetries = 1
	require.NoError(t, repo.Save(context.Background(), entry))

	observer := &recordingObserver{}
	relay := newRelay(repo, bus, serializer)
	relay.SetObserver(observer)
	relay.ProcessBatch(context.Background(), time.Now().UTC())

	stored, err := repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDead())
	assert.Contains(t, stored.LastError, "unknown event type")
	assert.Equal(t, []string{RelayResultDead}, observer.results)
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	repo := newMemoryOutboxRepository()
	entry := shared.NewOutboxEntry(newTestEvent("TestEvent", ""), []byte(`{}`))
	entry.MarkSent()
	old := time.Now().Add(-30 * 24 * time.Hour)
	entry.ProcessedAt = &old
	require.NoError(t, repo.Save(context.Background(), entry))

	relay := newRelay(repo, NewInMemoryEventBus(zap.NewNop()), NewEventSerializer())
	relay.Cleanup(context.Background(), time.Now())

	_, err := repo.FindByID(context.Background(), entry.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})
	repo := newMemoryOutboxRepository()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	entry := staleEntry(t, "TestEvent", time.Minute)
	require.NoError(t, repo.Save(context.Background(), entry))

	config := OutboxProcessorConfig{BatchSize: 10, PollInterval: 20 * time.Millisecond}
	relay := NewOutboxProcessor(repo, bus, serializer, config, zap.NewNop())
	require.NoError(t, relay.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return repo.status(entry.ID) == shared.OutboxStatusSent
	}, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, relay.Stop(stopCtx))
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.Equal(t, 30*time.Second, config.GracePeriod)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
}
