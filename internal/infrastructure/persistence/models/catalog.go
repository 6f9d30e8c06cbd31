package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// CatalogModel is the persistence model for catalogs
type CatalogModel struct {
	BaseModel
	ShopID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:varchar(200);not null"`
	IsDefault bool      `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (CatalogModel) TableName() string {
	return "catalogs"
}

// ToDomain converts the persistence model to a domain Catalog
func (m *CatalogModel) ToDomain() *catalog.Catalog {
	return &catalog.Catalog{
		BaseEntity: m.BaseModel.ToDomain(),
		ShopID:     m.ShopID,
		Name:       m.Name,
		IsDefault:  m.IsDefault,
	}
}

// FromDomain populates the persistence model from a domain Catalog
func (m *CatalogModel) FromDomain(c *catalog.Catalog) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.ShopID = c.ShopID
	m.Name = c.Name
	m.IsDefault = c.IsDefault
}

// ProductModel is the persistence model for the Product aggregate
type ProductModel struct {
	BaseModel
	ShopID      uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_product_shop_sku,priority:1"`
	CatalogID   uuid.UUID             `gorm:"type:uuid;not null;index"`
	SKU         string                `gorm:"type:varchar(64);not null;uniqueIndex:idx_product_shop_sku,priority:2"`
	Name        string                `gorm:"type:varchar(200);not null"`
	Price       decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Status      catalog.ProductStatus `gorm:"type:varchar(20);not null"`
	PublishedAt *time.Time
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.aggregateRoot(),
		ShopID:            m.ShopID,
		CatalogID:         m.CatalogID,
		SKU:               m.SKU,
		Name:              m.Name,
		Price:             m.Price,
		Status:            m.Status,
		PublishedAt:       m.PublishedAt,
	}
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.ShopID = p.ShopID
	m.CatalogID = p.CatalogID
	m.SKU = p.SKU
	m.Name = p.Name
	m.Price = p.Price
	m.Status = p.Status
	m.PublishedAt = p.PublishedAt
}
