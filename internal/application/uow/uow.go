// Package uow defines the unit-of-work boundary used by every facade.
package uow

import (
	"context"
	"errors"

	"github.com/shopkit/backend/internal/domain/bidding"
	"github.com/shopkit/backend/internal/domain/catalog"
	"github.com/shopkit/backend/internal/domain/customer"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/domain/payment"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/domain/shop"
)

// UnitOfWork runs a function inside one transactional scope.
//
// If fn returns nil the scope commits, and the events recorded through
// Repositories.Record are handed to the EventDispatcher afterwards. If fn
// returns an error nothing written inside the scope is kept and the error is
// returned unchanged; a panic rolls back and propagates. Scopes never nest:
// each facade call opens its own, so there is no atomicity across facade
// calls.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// ErrNotDispatched wraps a dispatch failure that happened after the scope
// committed. Whatever fn wrote is stored and its events sit in the outbox,
// so callers may still hand out the ids they created.
var ErrNotDispatched = errors.New("committed but not dispatched")

// Repositories exposes repositories bound to the current scope
type Repositories interface {
	Users() identity.UserRepository
	Registrations() shop.RegistrationRepository
	Shops() shop.ShopRepository
	Catalogs() catalog.CatalogRepository
	Products() catalog.ProductRepository
	Warehouses() inventory.WarehouseRepository
	StockItems() inventory.StockItemRepository
	Payments() payment.PaymentRepository
	Listings() bidding.ListingRepository
	Notifications() customer.NotificationRepository

	// Record queues events for delivery once the scope commits
	Record(events ...shared.DomainEvent)
}

// EventDispatcher delivers events after their scope has committed.
// entries are the outbox rows written for events, in the same order, or nil
// when the unit of work has no outbox.
type EventDispatcher interface {
	Dispatch(ctx context.Context, entries []*shared.OutboxEntry, events []shared.DomainEvent) error
}

// EventDispatcherFunc adapts a function to EventDispatcher
type EventDispatcherFunc func(ctx context.Context, entries []*shared.OutboxEntry, events []shared.DomainEvent) error

// Dispatch calls f
func (f EventDispatcherFunc) Dispatch(ctx context.Context, entries []*shared.OutboxEntry, events []shared.DomainEvent) error {
	return f(ctx, entries, events)
}

// RecordAggregate pulls pending domain events from aggregates into repos
func RecordAggregate(repos Repositories, aggregates ...shared.EventRecorder) {
	for _, a := range aggregates {
		repos.Record(a.PullDomainEvents()...)
	}
}
