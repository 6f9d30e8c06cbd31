package shop

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/catalog"
	"github.com/shopkit/backend/internal/domain/shop"
	"github.com/shopspring/decimal"
)

// registerShopCommand is validated before a registration is stored
type registerShopCommand struct {
	ShopName    string `json:"shop_name" validate:"required,max=100"`
	OwnerEmail  string `json:"owner_email" validate:"required,email,max=254"`
	OwnerMobile string `json:"owner_mobile" validate:"max=32"`
}

// createPendingShopCommand is validated before a pending shop is created
type createPendingShopCommand struct {
	OwnerID   uuid.UUID `json:"owner_id" validate:"required"`
	Name      string    `json:"name" validate:"required,max=100"`
	Email     string    `json:"owner_email" validate:"omitempty,email,max=254"`
	ProcmanID string    `json:"procman_id" validate:"required"`
}

// createProductCommand is validated before a product is created
type createProductCommand struct {
	ShopID uuid.UUID `json:"shop_id" validate:"required"`
	Name   string    `json:"name" validate:"required,max=200"`
	SKU    string    `json:"sku" validate:"required,max=64"`
}

// ShopView is the read model of a shop handed out of the module
type ShopView struct {
	ID           uuid.UUID   `json:"id"`
	OwnerID      uuid.UUID   `json:"owner_id"`
	Name         string      `json:"name"`
	ContactEmail string      `json:"contact_email"`
	ContactPhone string      `json:"contact_phone"`
	Status       string      `json:"status"`
	WarehouseIDs []uuid.UUID `json:"warehouse_ids"`
	ActivatedAt  *time.Time  `json:"activated_at,omitempty"`
}

// ToShopView converts a domain shop to its view
func ToShopView(s *shop.Shop) ShopView {
	return ShopView{
		ID:           s.ID,
		OwnerID:      s.OwnerID,
		Name:         s.Name,
		ContactEmail: s.ContactEmail,
		ContactPhone: s.ContactPhone,
		Status:       string(s.Status),
		WarehouseIDs: append([]uuid.UUID(nil), s.WarehouseIDs...),
		ActivatedAt:  s.ActivatedAt,
	}
}

// ProductView is the read model of a product
type ProductView struct {
	ID     uuid.UUID       `json:"id"`
	ShopID uuid.UUID       `json:"shop_id"`
	SKU    string          `json:"sku"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Status string          `json:"status"`
}

// ToProductView converts a domain product to its view
func ToProductView(p *catalog.Product) ProductView {
	return ProductView{
		ID:     p.ID,
		ShopID: p.ShopID,
		SKU:    p.SKU,
		Name:   p.Name,
		Price:  p.Price,
		Status: string(p.Status),
	}
}
