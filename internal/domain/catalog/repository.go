package catalog

import (
	"context"

	"github.com/google/uuid"
)

// CatalogRepository defines persistence for catalogs
type CatalogRepository interface {
	// FindDefault returns the default catalog of a shop
	FindDefault(ctx context.Context, shopID uuid.UUID) (*Catalog, bool, error)
	Save(ctx context.Context, catalog *Catalog) error
}

// ProductRepository defines persistence for products
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, bool, error)
	// FindBySKU finds a product by its per-shop SKU
	FindBySKU(ctx context.Context, shopID uuid.UUID, sku string) (*Product, bool, error)
	Save(ctx context.Context, product *Product) error
}
