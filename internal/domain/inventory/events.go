package inventory

import (
	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeWarehouse = "Warehouse"
	AggregateTypeStockItem = "StockItem"
)

// Inventory domain event types
const (
	EventTypePendingWarehouseCreated = "PendingWarehouseCreated"
	EventTypeStockItemsCreated       = "StockItemsCreated"
)

// PendingWarehouseCreatedEvent is published when a pending warehouse row exists
type PendingWarehouseCreatedEvent struct {
	shared.BaseDomainEvent
	WarehouseID uuid.UUID `json:"warehouse_id"`
	AdminUserID uuid.UUID `json:"admin_user_id"`
}

// NewPendingWarehouseCreatedEvent creates a new PendingWarehouseCreatedEvent
func NewPendingWarehouseCreatedEvent(w *Warehouse, procmanID string) *PendingWarehouseCreatedEvent {
	return &PendingWarehouseCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePendingWarehouseCreated, AggregateTypeWarehouse, w.ID, procmanID),
		WarehouseID:     w.ID,
		AdminUserID:     w.AdminUserID,
	}
}

// StockItemsCreatedEvent is published once a product has a stock item in
// every requested warehouse
type StockItemsCreatedEvent struct {
	shared.BaseDomainEvent
	ProductID    uuid.UUID   `json:"product_id"`
	StockItemIDs []uuid.UUID `json:"stock_item_ids"`
}

// NewStockItemsCreatedEvent creates a new StockItemsCreatedEvent
func NewStockItemsCreatedEvent(productID uuid.UUID, items []*StockItem, procmanID string) *StockItemsCreatedEvent {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return &StockItemsCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockItemsCreated, AggregateTypeStockItem, productID, procmanID),
		ProductID:       productID,
		StockItemIDs:    ids,
	}
}
