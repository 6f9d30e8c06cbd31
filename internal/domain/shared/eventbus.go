package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in
	// An empty slice means the handler receives all events
	EventTypes() []string
}

// EventHandlerFunc adapts a plain function to the EventHandler interface.
// Subscribe it by pointer so the bus can compare it on Unsubscribe.
type EventHandlerFunc struct {
	Types []string
	Fn    func(ctx context.Context, event DomainEvent) error
}

// Handle calls the wrapped function
func (f *EventHandlerFunc) Handle(ctx context.Context, event DomainEvent) error {
	return f.Fn(ctx, event)
}

// EventTypes returns the declared event types
func (f *EventHandlerFunc) EventTypes() []string {
	return f.Types
}

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish dispatches one or more domain events to the bound handlers.
	// The first failing handler stops dispatch and its error is returned.
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber binds handlers to event types
type EventSubscriber interface {
	// Subscribe binds a handler that is invoked synchronously on Publish.
	// If no event types are provided, the handler's EventTypes() are used;
	// a handler with no event types at all becomes a catch-all whose
	// failures are logged and never propagated.
	Subscribe(handler EventHandler, eventTypes ...string)
	// SubscribeDeferred binds a handler that is invoked through the bus
	// HandlerRunner rather than inline.
	SubscribeDeferred(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a handler from every registry
	Unsubscribe(handler EventHandler)
}

// EventBus combines publisher and subscriber capabilities
type EventBus interface {
	EventPublisher
	EventSubscriber
	// Start starts the event bus (e.g., background processing)
	Start(ctx context.Context) error
	// Stop gracefully stops the event bus
	Stop(ctx context.Context) error
}

// Job is a unit of deferred work scheduled through a HandlerRunner
type Job func(ctx context.Context) error

// HandlerRunner executes deferred handler jobs. Implementations decide
// whether a job runs immediately or after the currently running job.
type HandlerRunner interface {
	Run(ctx context.Context, job Job) error
}
