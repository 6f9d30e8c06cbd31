package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormWarehouseRepository implements WarehouseRepository using GORM
type GormWarehouseRepository struct {
	db *gorm.DB
}

// NewGormWarehouseRepository creates a new GormWarehouseRepository
func NewGormWarehouseRepository(db *gorm.DB) *GormWarehouseRepository {
	return &GormWarehouseRepository{db: db}
}

// FindByID finds a warehouse by its ID
func (r *GormWarehouseRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Warehouse, bool, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByAdmin finds the warehouse administered by a user
func (r *GormWarehouseRepository) FindByAdmin(ctx context.Context, adminUserID uuid.UUID) (*inventory.Warehouse, bool, error) {
	return r.findOne(ctx, "admin_user_id = ?", adminUserID)
}

func (r *GormWarehouseRepository) findOne(ctx context.Context, query string, args ...any) (*inventory.Warehouse, bool, error) {
	m, found, err := first[models.WarehouseModel](r.db.WithContext(ctx), query, args...)
	if err != nil || !found {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

// Save inserts or updates a warehouse
func (r *GormWarehouseRepository) Save(ctx context.Context, w *inventory.Warehouse) error {
	m := &models.WarehouseModel{}
	m.FromDomain(w)
	return translateWriteError("warehouses", r.db.WithContext(ctx).Save(m).Error)
}

// GormStockItemRepository implements StockItemRepository using GORM
type GormStockItemRepository struct {
	db *gorm.DB
}

// NewGormStockItemRepository creates a new GormStockItemRepository
func NewGormStockItemRepository(db *gorm.DB) *GormStockItemRepository {
	return &GormStockItemRepository{db: db}
}

// FindByProduct returns the stock items of a product across warehouses
func (r *GormStockItemRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]*inventory.StockItem, error) {
	var rows []models.StockItemModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]*inventory.StockItem, len(rows))
	for i := range rows {
		items[i] = rows[i].ToDomain()
	}
	return items, nil
}

// Save inserts or updates a stock item
func (r *GormStockItemRepository) Save(ctx context.Context, item *inventory.StockItem) error {
	m := &models.StockItemModel{}
	m.FromDomain(item)
	return translateWriteError("stock_items", r.db.WithContext(ctx).Save(m).Error)
}

var (
	_ inventory.WarehouseRepository = (*GormWarehouseRepository)(nil)
	_ inventory.StockItemRepository = (*GormStockItemRepository)(nil)
)
