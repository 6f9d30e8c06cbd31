package inventory

import (
	"context"

	"github.com/google/uuid"
)

// WarehouseRepository defines persistence for warehouses
type WarehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Warehouse, bool, error)
	// FindByAdmin returns the warehouse administered by a user
	FindByAdmin(ctx context.Context, adminUserID uuid.UUID) (*Warehouse, bool, error)
	Save(ctx context.Context, warehouse *Warehouse) error
}

// StockItemRepository defines persistence for stock items
type StockItemRepository interface {
	// FindByProduct returns all stock items of a product
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]*StockItem, error)
	Save(ctx context.Context, item *StockItem) error
}
