package shop

import (
	"context"

	"github.com/google/uuid"
)

// RegistrationRepository defines persistence for shop registrations
type RegistrationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ShopRegistration, bool, error)
	Save(ctx context.Context, registration *ShopRegistration) error
}

// ShopRepository defines persistence for shops
type ShopRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Shop, bool, error)
	// FindByOwner returns the shop of an owner; every owner has at most one
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*Shop, bool, error)
	// Save inserts or updates a shop together with its warehouse links
	Save(ctx context.Context, shop *Shop) error
}
