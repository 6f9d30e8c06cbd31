package catalog

import (
	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant for Product
const AggregateTypeProduct = "Product"

// Product domain event types
const (
	EventTypeProductCreated = "ProductCreated"
)

// ProductCreatedEvent is published when a shop adds a new product
type ProductCreatedEvent struct {
	shared.BaseDomainEvent
	ProductID    uuid.UUID       `json:"product_id"`
	ShopID       uuid.UUID       `json:"shop_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	WarehouseIDs []uuid.UUID     `json:"warehouse_ids"`
}

// NewProductCreatedEvent creates a new ProductCreatedEvent
func NewProductCreatedEvent(p *Product, warehouseIDs []uuid.UUID, procmanID string) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductCreated, AggregateTypeProduct, p.ID, procmanID),
		ProductID:       p.ID,
		ShopID:          p.ShopID,
		SKU:             p.SKU,
		Name:            p.Name,
		Price:           p.Price,
		WarehouseIDs:    append([]uuid.UUID(nil), warehouseIDs...),
	}
}
