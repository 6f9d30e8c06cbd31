// Package messaging streams posted domain events to Kafka as CloudEvents.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/segmentio/kafka-go"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/resilience"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// CloudEvents extension carrying the process manager correlation id
const ExtensionProcmanID = "procmanid"

// MessageWriter is the subset of *kafka.Writer the forwarder uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarderConfig holds configuration for the forwarder
type KafkaForwarderConfig struct {
	Brokers      []string
	Topic        string
	Source       string
	WriteTimeout time.Duration
}

// NewKafkaWriter builds a synchronous writer for cfg.Topic
func NewKafkaWriter(cfg KafkaForwarderConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// KafkaEventForwarder is a catch-all bus handler that publishes every event
// in structured CloudEvents JSON. Messages are keyed by aggregate id so one
// aggregate's events stay ordered within a partition. Failures surface to
// the bus, which logs and swallows catch-all errors.
type KafkaEventForwarder struct {
	writer  MessageWriter
	source  string
	timeout time.Duration
	breaker *resilience.Breaker
	logger  *zap.Logger
}

// NewKafkaEventForwarder creates a new forwarder
func NewKafkaEventForwarder(writer MessageWriter, cfg KafkaForwarderConfig, breaker *resilience.Breaker, logger *zap.Logger) *KafkaEventForwarder {
	source := cfg.Source
	if source == "" {
		source = "shopkit/backend"
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaEventForwarder{
		writer:  writer,
		source:  source,
		timeout: timeout,
		breaker: breaker,
		logger:  logger,
	}
}

// EventTypes returns nil: the forwarder receives every event
func (f *KafkaEventForwarder) EventTypes() []string {
	return nil
}

// Handle converts event and writes it to Kafka
func (f *KafkaEventForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	msg, err := f.Message(ctx, event)
	if err != nil {
		return err
	}

	err = f.breaker.Do(func() error {
		writeCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		return f.writer.WriteMessages(writeCtx, msg)
	})
	if err != nil {
		return fmt.Errorf("forward %s %s to kafka: %w", event.EventType(), event.EventID(), err)
	}

	f.logger.Debug("event forwarded to kafka",
		zap.String("event_id", event.EventID()),
		zap.String("event_type", event.EventType()),
	)
	return nil
}

// Message builds the Kafka message for event
func (f *KafkaEventForwarder) Message(ctx context.Context, event shared.DomainEvent) (kafka.Message, error) {
	ce, err := f.CloudEvent(event)
	if err != nil {
		return kafka.Message{}, err
	}
	value, err := json.Marshal(ce)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode cloudevent %s: %w", event.EventID(), err)
	}

	headers := headerCarrier{{Key: "content-type", Value: []byte(cloudevents.ApplicationCloudEventsJSON)}}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	return kafka.Message{
		Key:     []byte(event.AggregateID().String()),
		Value:   value,
		Headers: headers,
		Time:    event.OccurredAt(),
	}, nil
}

// CloudEvent maps a domain event onto CloudEvents attributes
func (f *KafkaEventForwarder) CloudEvent(event shared.DomainEvent) (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(event.EventID())
	ce.SetType("com.shopkit." + event.EventType())
	ce.SetSource(f.source)
	ce.SetSubject(strings.ToLower(event.AggregateType()) + "/" + event.AggregateID().String())
	ce.SetTime(event.OccurredAt())
	if id := event.ProcmanID(); id != "" {
		ce.SetExtension(ExtensionProcmanID, id)
	}
	if err := ce.SetData(cloudevents.ApplicationJSON, event); err != nil {
		return ce, fmt.Errorf("encode payload of %s: %w", event.EventID(), err)
	}
	if err := ce.Validate(); err != nil {
		return ce, fmt.Errorf("invalid cloudevent for %s: %w", event.EventID(), err)
	}
	return ce, nil
}

// Close closes the underlying writer
func (f *KafkaEventForwarder) Close() error {
	return f.writer.Close()
}

// headerCarrier adapts Kafka headers to an OTel text map carrier
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

var _ shared.EventHandler = (*KafkaEventForwarder)(nil)
