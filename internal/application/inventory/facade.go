// Package inventory is the public entry point into the inventory module.
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/application/uow"
	"github.com/shopkit/backend/internal/application/validation"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

type createPendingWarehouseCommand struct {
	AdminUserID uuid.UUID `json:"user_id" validate:"required"`
	Name        string    `json:"warehouse_name" validate:"required,max=100"`
	ProcmanID   string    `json:"procman_id" validate:"required"`
}

type createStockItemsCommand struct {
	ProductID    uuid.UUID   `json:"product_id" validate:"required"`
	WarehouseIDs []uuid.UUID `json:"warehouse_ids" validate:"min=1,dive,required"`
	ProcmanID    string      `json:"procman_id" validate:"required"`
}

// Facade handles warehouse and stock operations
type Facade struct {
	uow    uow.UnitOfWork
	logger *zap.Logger
}

// NewFacade creates a new inventory Facade
func NewFacade(u uow.UnitOfWork, logger *zap.Logger) *Facade {
	return &Facade{uow: u, logger: logger}
}

// CreatePendingWarehouse creates the pending warehouse administered by
// userID. Every user administers at most one warehouse, so a second call is
// a no-op.
func (f *Facade) CreatePendingWarehouse(ctx context.Context, userID uuid.UUID, warehouseName, procmanID string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", "create_pending_warehouse",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProcmanID, procmanID))
	defer span.End()

	cmd := createPendingWarehouseCommand{AdminUserID: userID, Name: warehouseName, ProcmanID: procmanID}
	if err := validation.Struct(cmd); err != nil {
		return err
	}

	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		existing, found, err := repos.Warehouses().FindByAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if found {
			f.logger.Info("warehouse already exists for admin, skipping",
				zap.String("admin_user_id", userID.String()),
				zap.String("warehouse_id", existing.ID.String()))
			return nil
		}

		w, err := inventory.NewPendingWarehouse(userID, warehouseName, procmanID)
		if err != nil {
			return err
		}
		if err := repos.Warehouses().Save(ctx, w); err != nil {
			return err
		}
		uow.RecordAggregate(repos, w)
		telemetry.SetAttribute(span, telemetry.SpanAttrWarehouseID, w.ID.String())
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("create pending warehouse for admin %s: %w", userID, err)
	}
	return nil
}

// ActivatePendingWarehouse activates a warehouse on behalf of its admin.
// Any other user gets shared.ErrForbidden.
func (f *Facade) ActivatePendingWarehouse(ctx context.Context, warehouseID, userID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", "activate_pending_warehouse",
		telemetry.WithAttribute(telemetry.SpanAttrWarehouseID, warehouseID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()))
	defer span.End()

	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		w, found, err := repos.Warehouses().FindByID(ctx, warehouseID)
		if err != nil {
			return err
		}
		if !found {
			return shared.ErrNotFound
		}
		activated, err := w.Activate(userID)
		if err != nil {
			return err
		}
		if !activated {
			f.logger.Info("warehouse already active, skipping", zap.String("warehouse_id", warehouseID.String()))
			return nil
		}
		return repos.Warehouses().Save(ctx, w)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("activate warehouse %s: %w", warehouseID, err)
	}
	return nil
}

// CreateStockItems creates an empty stock item for the product in each
// warehouse and posts StockItemsCreatedEvent. The items of a product are
// created together, so a product that already has stock items is skipped.
func (f *Facade) CreateStockItems(ctx context.Context, productID uuid.UUID, warehouseIDs []uuid.UUID, procmanID string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", "create_stock_items",
		telemetry.WithAttribute(telemetry.SpanAttrProductID, productID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProcmanID, procmanID))
	defer span.End()

	cmd := createStockItemsCommand{ProductID: productID, WarehouseIDs: warehouseIDs, ProcmanID: procmanID}
	if err := validation.Struct(cmd); err != nil {
		return err
	}

	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		existing, err := repos.StockItems().FindByProduct(ctx, productID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			f.logger.Info("stock items already exist, skipping",
				zap.String("product_id", productID.String()),
				zap.Int("count", len(existing)))
			return nil
		}

		items := make([]*inventory.StockItem, 0, len(warehouseIDs))
		seen := make(map[uuid.UUID]struct{}, len(warehouseIDs))
		for _, warehouseID := range warehouseIDs {
			if _, dup := seen[warehouseID]; dup {
				continue
			}
			seen[warehouseID] = struct{}{}
			item := inventory.NewStockItem(productID, warehouseID)
			if err := repos.StockItems().Save(ctx, item); err != nil {
				return err
			}
			items = append(items, item)
		}
		repos.Record(inventory.NewStockItemsCreatedEvent(productID, items, procmanID))
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("create stock items of product %s: %w", productID, err)
	}
	return nil
}
