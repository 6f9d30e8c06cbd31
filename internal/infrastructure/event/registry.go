package event

import (
	"sync"

	"github.com/shopkit/backend/internal/domain/shared"
)

// Binding tells the registry how a handler is invoked
type Binding int

const (
	// BindingSync handlers run inline during Publish, in registration order
	BindingSync Binding = iota
	// BindingDeferred handlers are scheduled through the bus HandlerRunner
	BindingDeferred
)

// String returns the binding name used in logs
func (b Binding) String() string {
	if b == BindingDeferred {
		return "deferred"
	}
	return "sync"
}

// HandlerRegistry manages event handler registrations.
// Handlers bound to explicit event types live in the sync or deferred
// multimap; handlers bound to no event type are catch-alls.
type HandlerRegistry struct {
	mu       sync.RWMutex
	sync     map[string][]shared.EventHandler
	deferred map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		sync:     make(map[string][]shared.EventHandler),
		deferred: make(map[string][]shared.EventHandler),
		wildcard: make([]shared.EventHandler, 0),
	}
}

// Register adds a handler for specific event types.
// If no event types are provided, the handler becomes a catch-all
// regardless of the requested binding.
func (r *HandlerRegistry) Register(binding Binding, handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = append(r.wildcard, handler)
		return
	}

	target := r.sync
	if binding == BindingDeferred {
		target = r.deferred
	}
	for _, eventType := range eventTypes {
		target[eventType] = append(target[eventType], handler)
	}
}

// Unregister removes a handler from all registries
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = removeHandler(r.wildcard, handler)
	for _, m := range []map[string][]shared.EventHandler{r.sync, r.deferred} {
		for eventType, handlers := range m {
			m[eventType] = removeHandler(handlers, handler)
			if len(m[eventType]) == 0 {
				delete(m, eventType)
			}
		}
	}
}

// SyncHandlers returns a snapshot of the sync handlers bound to eventType
func (r *HandlerRegistry) SyncHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]shared.EventHandler(nil), r.sync[eventType]...)
}

// DeferredHandlers returns a snapshot of the deferred handlers bound to eventType
func (r *HandlerRegistry) DeferredHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]shared.EventHandler(nil), r.deferred[eventType]...)
}

// CatchAllHandlers returns a snapshot of the catch-all handlers
func (r *HandlerRegistry) CatchAllHandlers() []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]shared.EventHandler(nil), r.wildcard...)
}

// BoundEventTypes returns every event type that has at least one typed handler
func (r *HandlerRegistry) BoundEventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	result := make([]string, 0, len(r.sync)+len(r.deferred))
	for _, m := range []map[string][]shared.EventHandler{r.sync, r.deferred} {
		for eventType := range m {
			if !seen[eventType] {
				seen[eventType] = true
				result = append(result, eventType)
			}
		}
	}
	return result
}

// removeHandler removes a handler from a slice of handlers
func removeHandler(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	result := make([]shared.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != target {
			result = append(result, h)
		}
	}
	return result
}
