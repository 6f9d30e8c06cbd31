package event

import (
	"context"
	"sync/atomic"

	"github.com/shopkit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DedupCounters counts what an IdempotentHandler did with each delivery.
// One value may be shared by several handlers.
type DedupCounters struct {
	handled    atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

type DedupSnapshot struct {
	Handled    int64 `json:"handled"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

func (c *DedupCounters) Snapshot() DedupSnapshot {
	return DedupSnapshot{
		Handled:    c.handled.Load(),
		Duplicates: c.duplicates.Load(),
		Failed:     c.failed.Load(),
	}
}

// IdempotentHandler passes each event id to the wrapped handler at most
// once per TTL. Store keys are prefixed with the consumer name, so two
// consumers of the same event never suppress each other.
type IdempotentHandler struct {
	inner    shared.EventHandler
	store    shared.IdempotencyStore
	config   shared.IdempotencyConfig
	consumer string
	counters *DedupCounters
	logger   *zap.Logger
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.config = config.WithDefaults() }
}

func WithDedupCounters(counters *DedupCounters) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.counters = counters }
}

func NewIdempotentHandler(
	consumer string,
	inner shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		inner:    inner,
		store:    store,
		config:   shared.DefaultIdempotencyConfig(),
		consumer: consumer,
		counters: &DedupCounters{},
		logger:   logger.With(zap.String("consumer", consumer)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.inner.EventTypes()
}

// Key is the store key for eventID
func (h *IdempotentHandler) Key(eventID string) string {
	return h.consumer + ":" + eventID
}

func (h *IdempotentHandler) Counters() *DedupCounters {
	return h.counters
}

func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.inner
}

// Handle claims the event id and runs the wrapped handler on first sight.
// When the store is unreachable the event is handled anyway: a duplicate
// is preferred over a lost event. A failed handler keeps its claim until
// the TTL lapses.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.inner.Handle(ctx, event)
	}

	log := h.logger.With(
		zap.String("event_id", event.EventID()),
		zap.String("event_type", event.EventType()),
	)

	first, err := h.store.MarkProcessed(ctx, h.Key(event.EventID()), h.config.TTL)
	switch {
	case err != nil:
		log.Warn("idempotency store unavailable, handling event unchecked", zap.Error(err))
	case !first:
		h.counters.duplicates.Add(1)
		log.Debug("duplicate event skipped")
		return nil
	}

	if err := h.inner.Handle(ctx, event); err != nil {
		h.counters.failed.Add(1)
		log.Error("event handler failed", zap.Error(err))
		return err
	}
	h.counters.handled.Add(1)
	return nil
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
