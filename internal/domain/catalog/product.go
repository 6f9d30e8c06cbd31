package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft" // Waiting for stock items
	ProductStatusPublished ProductStatus = "published"
)

// Product represents a sellable item of a shop
// It is the aggregate root for product-related operations
type Product struct {
	shared.BaseAggregateRoot
	ShopID      uuid.UUID
	CatalogID   uuid.UUID
	SKU         string
	Name        string
	Price       decimal.Decimal
	Status      ProductStatus
	PublishedAt *time.Time
}

// NewProduct creates a draft product and records ProductCreatedEvent.
// warehouseIDs are the shop warehouses that must stock the product before
// it is published.
func NewProduct(shopID, catalogID uuid.UUID, sku, name string, price decimal.Decimal, warehouseIDs []uuid.UUID, procmanID string) (*Product, error) {
	sku = NormalizeSKU(sku)
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	name = shared.NormalizeName(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_NAME", "Product name cannot be empty")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}

	product := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ShopID:            shopID,
		CatalogID:         catalogID,
		SKU:               sku,
		Name:              name,
		Price:             price,
		Status:            ProductStatusDraft,
	}
	product.AddDomainEvent(NewProductCreatedEvent(product, warehouseIDs, procmanID))
	return product, nil
}

// NormalizeSKU returns the stored form of a SKU
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// Publish makes the product visible. It returns false if it already was.
func (p *Product) Publish() bool {
	if p.Status == ProductStatusPublished {
		return false
	}
	now := time.Now().UTC()
	p.Status = ProductStatusPublished
	p.PublishedAt = &now
	p.UpdatedAt = now
	return true
}
