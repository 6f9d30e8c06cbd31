package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/shopkit/backend/internal/domain/shared"
)

// ErrUnknownEventType is returned for event types missing from the serializer
var ErrUnknownEventType = errors.New("unknown event type")

// EventSerializer turns domain events into outbox payloads and back. Only
// registered types are accepted in either direction, so an event the relay
// could not rebuild never reaches the outbox.
type EventSerializer struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewEventSerializer creates an empty serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{types: make(map[string]reflect.Type)}
}

// Register binds eventType to the concrete type of prototype, which must
// be a pointer to an event struct. Registering a name twice with different
// types panics: the table is static and built at startup.
func (s *EventSerializer) Register(eventType string, prototype shared.DomainEvent) {
	t := reflect.TypeOf(prototype)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("event: %s must be registered with a pointer to a struct, got %v", eventType, t))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.types[eventType]; ok && prev != t.Elem() {
		panic(fmt.Sprintf("event: %s registered as both %v and %v", eventType, prev, t.Elem()))
	}
	s.types[eventType] = t.Elem()
}

func (s *EventSerializer) lookup(eventType string) (reflect.Type, error) {
	s.mu.RLock()
	t, ok := s.types[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s is not registered", ErrUnknownEventType, eventType)
	}
	return t, nil
}

// Serialize encodes event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	if _, err := s.lookup(event.EventType()); err != nil {
		return nil, err
	}
	return json.Marshal(event)
}

// Deserialize rebuilds the event stored under eventType. A payload whose
// own type field disagrees with eventType is rejected.
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	t, err := s.lookup(eventType)
	if err != nil {
		return nil, err
	}

	event, ok := reflect.New(t).Interface().(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%v does not implement DomainEvent", t)
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	if got := event.EventType(); got != eventType {
		return nil, fmt.Errorf("payload stored as %s carries event type %q", eventType, got)
	}
	return event, nil
}

// IsRegistered reports whether eventType can be serialized
func (s *EventSerializer) IsRegistered(eventType string) bool {
	_, err := s.lookup(eventType)
	return err == nil
}

// RegisteredTypes returns the registered type names in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
