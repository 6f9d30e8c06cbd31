package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/inventory"
)

// WarehouseModel is the persistence model for the Warehouse aggregate
type WarehouseModel struct {
	BaseModel
	AdminUserID uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex"`
	Name        string                    `gorm:"type:varchar(200);not null"`
	Status      inventory.WarehouseStatus `gorm:"type:varchar(20);not null"`
	ActivatedAt *time.Time
}

// TableName returns the table name for GORM
func (WarehouseModel) TableName() string {
	return "warehouses"
}

// ToDomain converts the persistence model to a domain Warehouse
func (m *WarehouseModel) ToDomain() *inventory.Warehouse {
	return &inventory.Warehouse{
		BaseAggregateRoot: m.aggregateRoot(),
		AdminUserID:       m.AdminUserID,
		Name:              m.Name,
		Status:            m.Status,
		ActivatedAt:       m.ActivatedAt,
	}
}

// FromDomain populates the persistence model from a domain Warehouse
func (m *WarehouseModel) FromDomain(w *inventory.Warehouse) {
	m.FromDomainBaseEntity(w.BaseEntity)
	m.AdminUserID = w.AdminUserID
	m.Name = w.Name
	m.Status = w.Status
	m.ActivatedAt = w.ActivatedAt
}

// StockItemModel is the persistence model for stock items
type StockItemModel struct {
	BaseModel
	ProductID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_warehouse,priority:1"`
	WarehouseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_warehouse,priority:2"`
	Quantity    int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (StockItemModel) TableName() string {
	return "stock_items"
}

// ToDomain converts the persistence model to a domain StockItem
func (m *StockItemModel) ToDomain() *inventory.StockItem {
	return &inventory.StockItem{
		BaseEntity:  m.BaseModel.ToDomain(),
		ProductID:   m.ProductID,
		WarehouseID: m.WarehouseID,
		Quantity:    m.Quantity,
	}
}

// FromDomain populates the persistence model from a domain StockItem
func (m *StockItemModel) FromDomain(s *inventory.StockItem) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.ProductID = s.ProductID
	m.WarehouseID = s.WarehouseID
	m.Quantity = s.Quantity
}
