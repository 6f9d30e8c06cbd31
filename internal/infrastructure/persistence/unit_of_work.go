package persistence

import (
	"context"
	"fmt"

	"github.com/shopkit/backend/internal/application/uow"
	"github.com/shopkit/backend/internal/domain/bidding"
	"github.com/shopkit/backend/internal/domain/catalog"
	"github.com/shopkit/backend/internal/domain/customer"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/domain/payment"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/domain/shop"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxWriter stores events in the outbox using the caller's transaction
type OutboxWriter interface {
	PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) ([]*shared.OutboxEntry, error)
}

// GormUnitOfWork implements uow.UnitOfWork using GORM transactions.
// Events recorded in the scope are written to the outbox inside the same
// transaction and handed to the dispatcher once it has committed.
type GormUnitOfWork struct {
	db         *gorm.DB
	outbox     OutboxWriter
	dispatcher uow.EventDispatcher
	logger     *zap.Logger
}

// NewGormUnitOfWork creates a new GormUnitOfWork. dispatcher may be nil, in
// which case committed events are left to the outbox relay.
func NewGormUnitOfWork(db *gorm.DB, outbox OutboxWriter, dispatcher uow.EventDispatcher, logger *zap.Logger) *GormUnitOfWork {
	return &GormUnitOfWork{
		db:         db,
		outbox:     outbox,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Execute runs fn within a database transaction.
// If fn returns an error the transaction is rolled back and the error is
// returned unchanged. Dispatch errors come back after the commit wrapped in
// uow.ErrNotDispatched; the outbox rows stay pending so the relay delivers
// them later.
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos uow.Repositories) error) error {
	var (
		events  []shared.DomainEvent
		entries []*shared.OutboxEntry
	)

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := &gormScope{tx: tx}
		if err := fn(scope); err != nil {
			return err
		}
		if len(scope.events) == 0 {
			return nil
		}
		written, err := u.outbox.PublishWithTx(ctx, tx, scope.events...)
		if err != nil {
			return fmt.Errorf("write outbox: %w", err)
		}
		events, entries = scope.events, written
		return nil
	})
	if err != nil {
		return err
	}

	if len(events) == 0 || u.dispatcher == nil {
		return nil
	}
	if err := u.dispatcher.Dispatch(ctx, entries, events); err != nil {
		u.logger.Warn("committed events not dispatched, relay will redeliver",
			zap.Int("event_count", len(events)),
			zap.Error(err))
		return fmt.Errorf("%w: %w", uow.ErrNotDispatched, err)
	}
	return nil
}

// gormScope provides access to all repositories within a transaction
type gormScope struct {
	tx     *gorm.DB
	events []shared.DomainEvent
}

// Users returns the user repository scoped to the current transaction
func (s *gormScope) Users() identity.UserRepository {
	return NewGormUserRepository(s.tx)
}

// Registrations returns the shop registration repository scoped to the current transaction
func (s *gormScope) Registrations() shop.RegistrationRepository {
	return NewGormRegistrationRepository(s.tx)
}

// Shops returns the shop repository scoped to the current transaction
func (s *gormScope) Shops() shop.ShopRepository {
	return NewGormShopRepository(s.tx)
}

// Catalogs returns the catalog repository scoped to the current transaction
func (s *gormScope) Catalogs() catalog.CatalogRepository {
	return NewGormCatalogRepository(s.tx)
}

// Products returns the product repository scoped to the current transaction
func (s *gormScope) Products() catalog.ProductRepository {
	return NewGormProductRepository(s.tx)
}

// Warehouses returns the warehouse repository scoped to the current transaction
func (s *gormScope) Warehouses() inventory.WarehouseRepository {
	return NewGormWarehouseRepository(s.tx)
}

// StockItems returns the stock item repository scoped to the current transaction
func (s *gormScope) StockItems() inventory.StockItemRepository {
	return NewGormStockItemRepository(s.tx)
}

// Payments returns the payment repository scoped to the current transaction
func (s *gormScope) Payments() payment.PaymentRepository {
	return NewGormPaymentRepository(s.tx)
}

// Listings returns the listing repository scoped to the current transaction
func (s *gormScope) Listings() bidding.ListingRepository {
	return NewGormListingRepository(s.tx)
}

// Notifications returns the notification repository scoped to the current transaction
func (s *gormScope) Notifications() customer.NotificationRepository {
	return NewGormNotificationRepository(s.tx)
}

// Record queues events for the outbox and post-commit dispatch
func (s *gormScope) Record(events ...shared.DomainEvent) {
	s.events = append(s.events, events...)
}

// Ensure GormUnitOfWork implements UnitOfWork
var _ uow.UnitOfWork = (*GormUnitOfWork)(nil)

// Ensure gormScope implements Repositories
var _ uow.Repositories = (*gormScope)(nil)
