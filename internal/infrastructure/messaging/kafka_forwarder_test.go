package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

type shopRegisteredEvent struct {
	shared.BaseDomainEvent
	ShopName string `json:"shop_name"`
}

func newShopRegisteredEvent(procmanID string) *shopRegisteredEvent {
	return &shopRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("ShopRegistrationCreated", "ShopRegistration", uuid.New(), procmanID),
		ShopName:        "Corner Books",
	}
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestForwarder(w *fakeWriter, threshold uint32) *KafkaEventForwarder {
	cfg := resilience.DefaultBreakerConfig("kafka-test")
	cfg.FailureThreshold = threshold
	cfg.Timeout = time.Hour
	return NewKafkaEventForwarder(w, KafkaForwarderConfig{Topic: "shopkit.events", Source: "shopkit/test"},
		resilience.NewBreaker(cfg, zap.NewNop()), zap.NewNop())
}

func TestKafkaEventForwarder_Handle(t *testing.T) {
	w := &fakeWriter{}
	f := newTestForwarder(w, 5)
	evt := newShopRegisteredEvent("pm-42")

	require.NoError(t, f.Handle(context.Background(), evt))
	require.Len(t, w.messages, 1)
	msg := w.messages[0]

	assert.Equal(t, evt.AggregateID().String(), string(msg.Key))
	assert.Equal(t, "content-type", msg.Headers[0].Key)
	assert.Equal(t, cloudevents.ApplicationCloudEventsJSON, string(msg.Headers[0].Value))

	var ce cloudevents.Event
	require.NoError(t, json.Unmarshal(msg.Value, &ce))
	assert.Equal(t, evt.EventID(), ce.ID())
	assert.Equal(t, "com.shopkit.ShopRegistrationCreated", ce.Type())
	assert.Equal(t, "shopkit/test", ce.Source())
	assert.Equal(t, "shopregistration/"+evt.AggregateID().String(), ce.Subject())
	assert.Equal(t, "pm-42", ce.Extensions()[ExtensionProcmanID])

	var payload shopRegisteredEvent
	require.NoError(t, ce.DataAs(&payload))
	assert.Equal(t, "Corner Books", payload.ShopName)
	assert.Equal(t, evt.EventID(), payload.EventID())
}

func TestKafkaEventForwarder_OmitsEmptyProcmanID(t *testing.T) {
	f := newTestForwarder(&fakeWriter{}, 5)

	ce, err := f.CloudEvent(newShopRegisteredEvent(""))
	require.NoError(t, err)
	assert.NotContains(t, ce.Extensions(), ExtensionProcmanID)
	assert.Empty(t, f.EventTypes())
}

func TestKafkaEventForwarder_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	msg, err := newTestForwarder(&fakeWriter{}, 5).Message(ctx, newShopRegisteredEvent("pm-1"))
	require.NoError(t, err)

	carrier := headerCarrier(msg.Headers)
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
}

func TestKafkaEventForwarder_BreakerOpens(t *testing.T) {
	boom := errors.New("broker unreachable")
	w := &fakeWriter{err: boom}
	f := newTestForwarder(w, 2)

	assert.ErrorIs(t, f.Handle(context.Background(), newShopRegisteredEvent("")), boom)
	assert.ErrorIs(t, f.Handle(context.Background(), newShopRegisteredEvent("")), boom)

	w.err = nil
	err := f.Handle(context.Background(), newShopRegisteredEvent(""))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Empty(t, w.messages)
}

func TestKafkaEventForwarder_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newTestForwarder(w, 5).Close())
	assert.True(t, w.closed)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter(KafkaForwarderConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "shopkit.events",
		WriteTimeout: 2 * time.Second,
	})
	defer w.Close()
	assert.Equal(t, "shopkit.events", w.Topic)
	assert.Equal(t, 2*time.Second, w.WriteTimeout)
}
