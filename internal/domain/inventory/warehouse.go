package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// WarehouseStatus represents the status of a warehouse
type WarehouseStatus string

const (
	WarehouseStatusPending WarehouseStatus = "pending"
	WarehouseStatusActive  WarehouseStatus = "active"
)

// Warehouse is a stock location administered by a single user.
// Each admin user owns at most one warehouse.
type Warehouse struct {
	shared.BaseAggregateRoot
	AdminUserID uuid.UUID
	Name        string
	Status      WarehouseStatus
	ActivatedAt *time.Time
}

// NewPendingWarehouse creates a pending warehouse and records
// PendingWarehouseCreatedEvent
func NewPendingWarehouse(adminUserID uuid.UUID, name, procmanID string) (*Warehouse, error) {
	if adminUserID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ADMIN", "Admin user ID cannot be empty")
	}
	name = shared.NormalizeName(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_WAREHOUSE_NAME", "Warehouse name cannot be empty")
	}

	w := &Warehouse{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AdminUserID:       adminUserID,
		Name:              name,
		Status:            WarehouseStatusPending,
	}
	w.AddDomainEvent(NewPendingWarehouseCreatedEvent(w, procmanID))
	return w, nil
}

// Activate activates the warehouse on behalf of userID, who must be its
// admin. It returns false if the warehouse was already active.
func (w *Warehouse) Activate(userID uuid.UUID) (bool, error) {
	if w.AdminUserID != userID {
		return false, shared.ErrForbidden
	}
	if w.Status == WarehouseStatusActive {
		return false, nil
	}
	now := time.Now().UTC()
	w.Status = WarehouseStatusActive
	w.ActivatedAt = &now
	w.UpdatedAt = now
	return true, nil
}
