package inventory

import (
	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// StockItem tracks the quantity of one product in one warehouse
type StockItem struct {
	shared.BaseEntity
	ProductID   uuid.UUID
	WarehouseID uuid.UUID
	Quantity    int
}

// NewStockItem creates an empty stock item
func NewStockItem(productID, warehouseID uuid.UUID) *StockItem {
	return &StockItem{
		BaseEntity:  shared.NewBaseEntity(),
		ProductID:   productID,
		WarehouseID: warehouseID,
	}
}
