package saga

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/catalog"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/domain/procman"
)

// SagaTypeShopCreatingNewProduct names the product onboarding workflow
const SagaTypeShopCreatingNewProduct = "ShopCreatingNewProduct"

// StatePendingStockItems waits for every warehouse to stock the product
const StatePendingStockItems = "PENDING_STOCK_ITEMS"

// ShopCreatingNewProductTimeout bounds product onboarding
const ShopCreatingNewProductTimeout = 24 * time.Hour

// ShopCreatingNewProductData is accumulated while a product is onboarded
type ShopCreatingNewProductData struct {
	ProductID    uuid.UUID   `json:"product_id"`
	ShopID       uuid.UUID   `json:"shop_id"`
	WarehouseIDs []uuid.UUID `json:"warehouse_ids"`
	StockItemIDs []uuid.UUID `json:"stock_item_ids,omitempty"`
}

// NewShopCreatingNewProductSaga builds the workflow that stocks and publishes
// a newly created product
func NewShopCreatingNewProductSaga(f Facades) *Definition[ShopCreatingNewProductData] {
	def := NewDefinition[ShopCreatingNewProductData](SagaTypeShopCreatingNewProduct)

	On(def, catalog.EventTypeProductCreated, procman.StateStarted,
		func(ctx context.Context, e *catalog.ProductCreatedEvent, inst *Instance[ShopCreatingNewProductData]) error {
			if err := f.Inventory.CreateStockItems(ctx, e.ProductID, e.WarehouseIDs, inst.ID); err != nil {
				return err
			}
			inst.Data.ProductID = e.ProductID
			inst.Data.ShopID = e.ShopID
			inst.Data.WarehouseIDs = e.WarehouseIDs
			inst.SetDeadline(ShopCreatingNewProductTimeout)
			inst.State = StatePendingStockItems
			return nil
		})

	On(def, inventory.EventTypeStockItemsCreated, StatePendingStockItems,
		func(ctx context.Context, e *inventory.StockItemsCreatedEvent, inst *Instance[ShopCreatingNewProductData]) error {
			if err := f.Shop.PublishProduct(ctx, inst.Data.ProductID); err != nil {
				return err
			}
			inst.Data.StockItemIDs = e.StockItemIDs
			inst.TimeoutAt = nil
			inst.State = procman.StateFinished
			return nil
		})

	return def
}
