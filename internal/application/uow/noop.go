package uow

import (
	"context"
	"fmt"

	"github.com/shopkit/backend/internal/domain/bidding"
	"github.com/shopkit/backend/internal/domain/catalog"
	"github.com/shopkit/backend/internal/domain/customer"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/domain/payment"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/domain/shop"
)

// RepositorySet holds plain repository instances for NoOpUnitOfWork.
// Nil fields are fine as long as the code under test does not use them.
type RepositorySet struct {
	Users         identity.UserRepository
	Registrations shop.RegistrationRepository
	Shops         shop.ShopRepository
	Catalogs      catalog.CatalogRepository
	Products      catalog.ProductRepository
	Warehouses    inventory.WarehouseRepository
	StockItems    inventory.StockItemRepository
	Payments      payment.PaymentRepository
	Listings      bidding.ListingRepository
	Notifications customer.NotificationRepository
}

// NoOpUnitOfWork runs fn against the given repositories without a
// transaction. Recorded events are still dispatched only when fn succeeds,
// which keeps the post-commit contract observable in unit tests.
type NoOpUnitOfWork struct {
	repos      RepositorySet
	dispatcher EventDispatcher

	// Dispatched collects every event handed to the dispatcher
	Dispatched []shared.DomainEvent
}

// NewNoOpUnitOfWork creates a NoOpUnitOfWork. dispatcher may be nil.
func NewNoOpUnitOfWork(repos RepositorySet, dispatcher EventDispatcher) *NoOpUnitOfWork {
	return &NoOpUnitOfWork{repos: repos, dispatcher: dispatcher}
}

// Execute runs fn and dispatches recorded events on success
func (u *NoOpUnitOfWork) Execute(ctx context.Context, fn func(repos Repositories) error) error {
	scope := &noOpScope{set: &u.repos}
	if err := fn(scope); err != nil {
		return err
	}
	if len(scope.events) == 0 {
		return nil
	}
	u.Dispatched = append(u.Dispatched, scope.events...)
	if u.dispatcher == nil {
		return nil
	}
	if err := u.dispatcher.Dispatch(ctx, nil, scope.events); err != nil {
		return fmt.Errorf("%w: %w", ErrNotDispatched, err)
	}
	return nil
}

type noOpScope struct {
	set    *RepositorySet
	events []shared.DomainEvent
}

func (s *noOpScope) Users() identity.UserRepository { return s.set.Users }
func (s *noOpScope) Registrations() shop.RegistrationRepository { return s.set.Registrations }
func (s *noOpScope) Shops() shop.ShopRepository { return s.set.Shops }
func (s *noOpScope) Catalogs() catalog.CatalogRepository { return s.set.Catalogs }
func (s *noOpScope) Products() catalog.ProductRepository { return s.set.Products }
func (s *noOpScope) Warehouses() inventory.WarehouseRepository { return s.set.Warehouses }
func (s *noOpScope) StockItems() inventory.StockItemRepository { return s.set.StockItems }
func (s *noOpScope) Payments() payment.PaymentRepository { return s.set.Payments }
func (s *noOpScope) Listings() bidding.ListingRepository { return s.set.Listings }
func (s *noOpScope) Notifications() customer.NotificationRepository { return s.set.Notifications }

func (s *noOpScope) Record(events ...shared.DomainEvent) {
	s.events = append(s.events, events...)
}

var (
	_ UnitOfWork   = (*NoOpUnitOfWork)(nil)
	_ Repositories = (*noOpScope)(nil)
)
