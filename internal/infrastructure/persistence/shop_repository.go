package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shop"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRegistrationRepository implements RegistrationRepository using GORM
type GormRegistrationRepository struct {
	db *gorm.DB
}

// NewGormRegistrationRepository creates a new GormRegistrationRepository
func NewGormRegistrationRepository(db *gorm.DB) *GormRegistrationRepository {
	return &GormRegistrationRepository{db: db}
}

// FindByID finds a shop registration by ID
func (r *GormRegistrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*shop.ShopRegistration, bool, error) {
	m, found, err := first[models.ShopRegistrationModel](r.db.WithContext(ctx), "id = ?", id)
	if err != nil || !found {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

// Save inserts or updates a shop registration
func (r *GormRegistrationRepository) Save(ctx context.Context, registration *shop.ShopRegistration) error {
	m := &models.ShopRegistrationModel{}
	m.FromDomain(registration)
	return translateWriteError("shop_registrations", r.db.WithContext(ctx).Save(m).Error)
}

// GormShopRepository implements ShopRepository using GORM.
// Warehouse ids live in the shop_warehouses link table.
type GormShopRepository struct {
	db *gorm.DB
}

// NewGormShopRepository creates a new GormShopRepository
func NewGormShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// FindByID finds a shop by ID
func (r *GormShopRepository) FindByID(ctx context.Context, id uuid.UUID) (*shop.Shop, bool, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByOwner finds the shop owned by a user
func (r *GormShopRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*shop.Shop, bool, error) {
	return r.findOne(ctx, "owner_id = ?", ownerID)
}

func (r *GormShopRepository) findOne(ctx context.Context, query string, args ...any) (*shop.Shop, bool, error) {
	db := r.db.WithContext(ctx)
	m, found, err := first[models.ShopModel](db, query, args...)
	if err != nil || !found {
		return nil, false, err
	}
	var links []models.ShopWarehouseModel
	if err := db.Where("shop_id = ?", m.ID).Order("created_at ASC").Find(&links).Error; err != nil {
		return nil, false, err
	}
	return m.ToDomain(links), true, nil
}

// Save inserts or updates a shop and adds any warehouse links not stored yet.
// Links are never removed.
func (r *GormShopRepository) Save(ctx context.Context, s *shop.Shop) error {
	db := r.db.WithContext(ctx)
	m := &models.ShopModel{}
	m.FromDomain(s)
	if err := db.Save(m).Error; err != nil {
		return translateWriteError("shops", err)
	}
	if len(s.WarehouseIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	links := make([]models.ShopWarehouseModel, 0, len(s.WarehouseIDs))
	for _, id := range s.WarehouseIDs {
		links = append(links, models.ShopWarehouseModel{ShopID: s.ID, WarehouseID: id, CreatedAt: now})
	}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
	return translateWriteError("shop_warehouses", err)
}

var (
	_ shop.RegistrationRepository = (*GormRegistrationRepository)(nil)
	_ shop.ShopRepository         = (*GormShopRepository)(nil)
)
