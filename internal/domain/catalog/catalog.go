package catalog

import (
	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// DefaultCatalogName is the name given to the catalog every shop starts with
const DefaultCatalogName = "Default"

// Catalog groups the products a shop offers
type Catalog struct {
	shared.BaseEntity
	ShopID    uuid.UUID
	Name      string
	IsDefault bool
}

// NewDefaultCatalog creates the default catalog of a shop
func NewDefaultCatalog(shopID uuid.UUID) *Catalog {
	return &Catalog{
		BaseEntity: shared.NewBaseEntity(),
		ShopID:     shopID,
		Name:       DefaultCatalogName,
		IsDefault:  true,
	}
}
