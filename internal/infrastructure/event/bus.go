package event

import (
	"context"
	"fmt"

	"github.com/shopkit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus dispatches domain events inside the process. For each
// published event it runs, in this order:
//
//  1. catch-all handlers; failures and panics are logged and dropped
//  2. sync handlers in registration order, stopping at the first failure
//  3. deferred handlers, each handed to the HandlerRunner as a job
//
// Publishing a type nobody is bound to does nothing.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	runner   shared.HandlerRunner
	logger   *zap.Logger
}

type BusOption func(*InMemoryEventBus)

// WithRunner replaces ImmediateRunner for deferred handlers. Sagas use
// QueueRunner so a handler's follow-up events wait for it to return.
func WithRunner(runner shared.HandlerRunner) BusOption {
	return func(b *InMemoryEventBus) { b.runner = runner }
}

func WithRegistry(registry *HandlerRegistry) BusOption {
	return func(b *InMemoryEventBus) { b.registry = registry }
}

func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	b := &InMemoryEventBus{registry: NewHandlerRegistry(), runner: ImmediateRunner{}, logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers events one after another and stops at the first event
// whose sync or deferred handling fails.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, evt := range events {
		if err := b.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (b *InMemoryEventBus) deliver(ctx context.Context, evt shared.DomainEvent) error {
	log := b.logger.With(
		zap.String("event_type", evt.EventType()),
		zap.String("event_id", evt.EventID()),
		zap.String("procman_id", evt.ProcmanID()),
	)

	for _, h := range b.registry.CatchAllHandlers() {
		if err := invoke(ctx, h, evt); err != nil {
			log.Warn("catch-all handler failed", zap.Error(err))
		}
	}

	for _, h := range b.registry.SyncHandlers(evt.EventType()) {
		if err := invoke(ctx, h, evt); err != nil {
			log.Error("event handler failed", zap.Error(err))
			return fmt.Errorf("handle %s: %w", evt.EventType(), err)
		}
	}

	for _, h := range b.registry.DeferredHandlers(evt.EventType()) {
		job := func(ctx context.Context) error {
			if err := invoke(ctx, h, evt); err != nil {
				log.Error("deferred event handler failed", zap.Error(err))
				return fmt.Errorf("handle %s: %w", evt.EventType(), err)
			}
			return nil
		}
		if err := b.runner.Run(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// invoke calls h, turning a panic into an error
func invoke(ctx context.Context, h shared.EventHandler, evt shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, evt)
}

// Subscribe binds h synchronously. With no explicit types, h.EventTypes()
// decides.
func (b *InMemoryEventBus) Subscribe(h shared.EventHandler, eventTypes ...string) {
	b.bind(BindingSync, h, eventTypes)
}

func (b *InMemoryEventBus) SubscribeDeferred(h shared.EventHandler, eventTypes ...string) {
	b.bind(BindingDeferred, h, eventTypes)
}

// SubscribeAll binds h to every event type as a best-effort observer
func (b *InMemoryEventBus) SubscribeAll(h shared.EventHandler) {
	b.registry.Register(BindingSync, h)
	b.logger.Debug("catch-all handler bound")
}

func (b *InMemoryEventBus) bind(binding Binding, h shared.EventHandler, eventTypes []string) {
	if len(eventTypes) == 0 {
		eventTypes = h.EventTypes()
	}
	b.registry.Register(binding, h, eventTypes...)
	b.logger.Debug("handler bound", zap.Stringer("binding", binding), zap.Strings("event_types", eventTypes))
}

func (b *InMemoryEventBus) Unsubscribe(h shared.EventHandler) {
	b.registry.Unregister(h)
}

// Start only reports the wiring; dispatch needs no background work.
func (b *InMemoryEventBus) Start(context.Context) error {
	b.logger.Info("event bus started", zap.Strings("bound_event_types", b.registry.BoundEventTypes()))
	return nil
}

func (b *InMemoryEventBus) Stop(context.Context) error {
	b.logger.Info("event bus stopped")
	return nil
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
