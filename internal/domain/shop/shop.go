package shop

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// ShopStatus represents the status of a shop
type ShopStatus string

const (
	ShopStatusPending ShopStatus = "pending"
	ShopStatusActive  ShopStatus = "active"
)

// Shop is a storefront owned by exactly one user
type Shop struct {
	shared.BaseAggregateRoot
	OwnerID      uuid.UUID
	Name         string
	ContactEmail string
	ContactPhone string
	Status       ShopStatus
	WarehouseIDs []uuid.UUID
	ActivatedAt  *time.Time
}

// NewPendingShop creates a pending shop and records PendingShopCreatedEvent
func NewPendingShop(ownerID uuid.UUID, name, contactEmail, procmanID string) (*Shop, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	name = shared.NormalizeName(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_SHOP_NAME", "Shop name cannot be empty")
	}

	s := &Shop{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OwnerID:           ownerID,
		Name:              name,
		ContactEmail:      shared.NormalizeEmail(contactEmail),
		Status:            ShopStatusPending,
		WarehouseIDs:      make([]uuid.UUID, 0),
	}
	s.AddDomainEvent(NewPendingShopCreatedEvent(s, procmanID))
	return s, nil
}

// HasWarehouse reports whether the warehouse is attached to the shop
func (s *Shop) HasWarehouse(warehouseID uuid.UUID) bool {
	for _, id := range s.WarehouseIDs {
		if id == warehouseID {
			return true
		}
	}
	return false
}

// AttachWarehouse adds a warehouse to the shop. It returns false if the
// warehouse was already attached.
func (s *Shop) AttachWarehouse(warehouseID uuid.UUID) bool {
	if s.HasWarehouse(warehouseID) {
		return false
	}
	s.WarehouseIDs = append(s.WarehouseIDs, warehouseID)
	s.UpdatedAt = time.Now().UTC()
	return true
}

// Activate activates a pending shop. It returns false if already active.
func (s *Shop) Activate() bool {
	if s.Status == ShopStatusActive {
		return false
	}
	now := time.Now().UTC()
	s.Status = ShopStatusActive
	s.ActivatedAt = &now
	s.UpdatedAt = now
	return true
}

// UpdateContact replaces the owner contact data shown by the shop
func (s *Shop) UpdateContact(email, phone string) bool {
	email = shared.NormalizeEmail(email)
	if s.ContactEmail == email && s.ContactPhone == phone {
		return false
	}
	s.ContactEmail = email
	s.ContactPhone = phone
	s.UpdatedAt = time.Now().UTC()
	return true
}
