package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/catalog"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCatalogRepository implements CatalogRepository using GORM
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// FindDefault finds the default catalog of a shop
func (r *GormCatalogRepository) FindDefault(ctx context.Context, shopID uuid.UUID) (*catalog.Catalog, bool, error) {
	m, found, err := first[models.CatalogModel](r.db.WithContext(ctx), "shop_id = ? AND is_default = ?", shopID, true)
	if err != nil || !found {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

// Save inserts or updates a catalog
func (r *GormCatalogRepository) Save(ctx context.Context, c *catalog.Catalog) error {
	m := &models.CatalogModel{}
	m.FromDomain(c)
	return translateWriteError("catalogs", r.db.WithContext(ctx).Save(m).Error)
}

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, bool, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindBySKU finds a product by its SKU within a shop
func (r *GormProductRepository) FindBySKU(ctx context.Context, shopID uuid.UUID, sku string) (*catalog.Product, bool, error) {
	return r.findOne(ctx, "shop_id = ? AND sku = ?", shopID, sku)
}

func (r *GormProductRepository) findOne(ctx context.Context, query string, args ...any) (*catalog.Product, bool, error) {
	m, found, err := first[models.ProductModel](r.db.WithContext(ctx), query, args...)
	if err != nil || !found {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

// Save inserts or updates a product
func (r *GormProductRepository) Save(ctx context.Context, p *catalog.Product) error {
	m := &models.ProductModel{}
	m.FromDomain(p)
	return translateWriteError("products", r.db.WithContext(ctx).Save(m).Error)
}

var (
	_ catalog.CatalogRepository = (*GormCatalogRepository)(nil)
	_ catalog.ProductRepository = (*GormProductRepository)(nil)
)
