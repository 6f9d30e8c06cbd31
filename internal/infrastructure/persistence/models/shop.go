package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shop"
)

// ShopRegistrationModel is the persistence model for shop registrations
type ShopRegistrationModel struct {
	BaseModel
	ShopName    string                  `gorm:"type:varchar(200);not null"`
	OwnerEmail  string                  `gorm:"type:varchar(320);not null;index"`
	OwnerMobile string                  `gorm:"type:varchar(50)"`
	TokenHash   string                  `gorm:"type:varchar(100);not null"`
	Status      shop.RegistrationStatus `gorm:"type:varchar(30);not null"`
	ConfirmedAt *time.Time
}

// TableName returns the table name for GORM
func (ShopRegistrationModel) TableName() string {
	return "shop_registrations"
}

// ToDomain converts the persistence model to a domain ShopRegistration
func (m *ShopRegistrationModel) ToDomain() *shop.ShopRegistration {
	return &shop.ShopRegistration{
		BaseAggregateRoot: m.aggregateRoot(),
		ShopName:          m.ShopName,
		OwnerEmail:        m.OwnerEmail,
		OwnerMobile:       m.OwnerMobile,
		TokenHash:         m.TokenHash,
		Status:            m.Status,
		ConfirmedAt:       m.ConfirmedAt,
	}
}

// FromDomain populates the persistence model from a domain ShopRegistration
func (m *ShopRegistrationModel) FromDomain(r *shop.ShopRegistration) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.ShopName = r.ShopName
	m.OwnerEmail = r.OwnerEmail
	m.OwnerMobile = r.OwnerMobile
	m.TokenHash = r.TokenHash
	m.Status = r.Status
	m.ConfirmedAt = r.ConfirmedAt
}

// ShopModel is the persistence model for the Shop aggregate
type ShopModel struct {
	BaseModel
	OwnerID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Name         string          `gorm:"type:varchar(200);not null"`
	ContactEmail string          `gorm:"type:varchar(320)"`
	ContactPhone string          `gorm:"type:varchar(50)"`
	Status       shop.ShopStatus `gorm:"type:varchar(20);not null"`
	ActivatedAt  *time.Time
}

// TableName returns the table name for GORM
func (ShopModel) TableName() string {
	return "shops"
}

// ShopWarehouseModel links a shop to one of its warehouses
type ShopWarehouseModel struct {
	ShopID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	WarehouseID uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ShopWarehouseModel) TableName() string {
	return "shop_warehouses"
}

// ToDomain converts the persistence model to a domain Shop
func (m *ShopModel) ToDomain(links []ShopWarehouseModel) *shop.Shop {
	ids := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.WarehouseID)
	}
	return &shop.Shop{
		BaseAggregateRoot: m.aggregateRoot(),
		OwnerID:           m.OwnerID,
		Name:              m.Name,
		ContactEmail:      m.ContactEmail,
		ContactPhone:      m.ContactPhone,
		Status:            m.Status,
		WarehouseIDs:      ids,
		ActivatedAt:       m.ActivatedAt,
	}
}

// FromDomain populates the persistence model from a domain Shop
func (m *ShopModel) FromDomain(s *shop.Shop) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.OwnerID = s.OwnerID
	m.Name = s.Name
	m.ContactEmail = s.ContactEmail
	m.ContactPhone = s.ContactPhone
	m.Status = s.Status
	m.ActivatedAt = s.ActivatedAt
}
