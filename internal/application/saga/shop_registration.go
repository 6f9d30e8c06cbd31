package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shop"
)

// SagaTypeShopRegistration names the shop registration workflow
const SagaTypeShopRegistration = "ShopRegistration"

// Shop registration states
const (
	StatePendingUserCreated     = "PENDING_USER_CREATED"
	StatePendingShopCreated     = "PENDING_SHOP_CREATED"
	StateWaitingForConfirmation = "WAITING_FOR_CONFIRMATION"
)

// ShopRegistrationTimeout is how long an owner has to confirm a registration
const ShopRegistrationTimeout = 10 * 24 * time.Hour

// ShopRegistrationData is accumulated while a registration runs
type ShopRegistrationData struct {
	RegistrationID    uuid.UUID `json:"registration_id"`
	ShopName          string    `json:"shop_name"`
	OwnerEmail        string    `json:"owner_email"`
	OwnerMobile       string    `json:"owner_mobile"`
	ConfirmationToken string    `json:"confirmation_token,omitempty"`
	UserID            uuid.UUID `json:"user_id"`
	ShopID            uuid.UUID `json:"shop_id"`
	WarehouseID       uuid.UUID `json:"warehouse_id"`
}

// NewShopRegistrationSaga builds the registration workflow.
//
// After the pending user exists the shop and the warehouse are created in
// parallel. Both PendingShopCreated and PendingWarehouseCreated are handled
// in PENDING_SHOP_CREATED; whichever arrives second attaches the warehouse to
// the shop and moves on to WAITING_FOR_CONFIRMATION.
func NewShopRegistrationSaga(f Facades) *Definition[ShopRegistrationData] {
	def := NewDefinition[ShopRegistrationData](SagaTypeShopRegistration)

	On(def, shop.EventTypeShopRegistrationCreated, procman.StateStarted,
		func(ctx context.Context, e *shop.ShopRegistrationCreatedEvent, inst *Instance[ShopRegistrationData]) error {
			if err := f.Identity.CreatePendingUser(ctx, e.RegistrationID, e.OwnerEmail, e.OwnerMobile, inst.ID); err != nil {
				return err
			}
			inst.Data.RegistrationID = e.RegistrationID
			inst.Data.ShopName = e.ShopName
			inst.Data.OwnerEmail = e.OwnerEmail
			inst.Data.OwnerMobile = e.OwnerMobile
			inst.Data.ConfirmationToken = e.ConfirmationToken
			inst.SetDeadline(ShopRegistrationTimeout)
			inst.State = StatePendingUserCreated
			return nil
		})

	On(def, identity.EventTypePendingUserCreated, StatePendingUserCreated,
		func(ctx context.Context, e *identity.PendingUserCreatedEvent, inst *Instance[ShopRegistrationData]) error {
			d := &inst.Data
			if err := f.Shop.CreatePendingShop(ctx, e.UserID, d.ShopName, d.OwnerEmail, inst.ID); err != nil {
				return err
			}
			if err := f.Inventory.CreatePendingWarehouse(ctx, e.UserID, d.ShopName, inst.ID); err != nil {
				return err
			}
			if err := f.Customer.SendStoreRegistrationConfirmationTokenEmail(ctx, d.ShopName, d.ConfirmationToken, d.OwnerEmail); err != nil {
				return err
			}
			// the owner has the token now; only its bcrypt hash stays on the registration
			d.ConfirmationToken = ""
			d.UserID = e.UserID
			inst.State = StatePendingShopCreated
			return nil
		})

	On(def, shop.EventTypePendingShopCreated, StatePendingShopCreated,
		func(ctx context.Context, e *shop.PendingShopCreatedEvent, inst *Instance[ShopRegistrationData]) error {
			if err := f.Shop.CreateDefaultCatalog(ctx, e.ShopID); err != nil {
				return err
			}
			inst.Data.ShopID = e.ShopID
			return joinShopAndWarehouse(ctx, f, inst)
		})

	On(def, inventory.EventTypePendingWarehouseCreated, StatePendingShopCreated,
		func(ctx context.Context, e *inventory.PendingWarehouseCreatedEvent, inst *Instance[ShopRegistrationData]) error {
			inst.Data.WarehouseID = e.WarehouseID
			return joinShopAndWarehouse(ctx, f, inst)
		})

	On(def, shop.EventTypeShopRegistrationConfirmed, StateWaitingForConfirmation,
		func(ctx context.Context, e *shop.ShopRegistrationConfirmedEvent, inst *Instance[ShopRegistrationData]) error {
			d := inst.Data
			if err := f.Identity.ActivateUser(ctx, d.UserID); err != nil {
				return err
			}
			if err := f.Shop.ActivatePendingShop(ctx, d.ShopID); err != nil {
				return err
			}
			if err := f.Inventory.ActivatePendingWarehouse(ctx, d.WarehouseID, d.UserID); err != nil {
				return err
			}
			if err := f.Customer.SendShopCreatedEmail(ctx, d.ShopID, d.ShopName, d.OwnerEmail); err != nil {
				return err
			}
			inst.TimeoutAt = nil
			inst.State = procman.StateFinished
			return nil
		})

	return def
}

// joinShopAndWarehouse advances once both halves of the fan-out are known
func joinShopAndWarehouse(ctx context.Context, f Facades, inst *Instance[ShopRegistrationData]) error {
	d := inst.Data
	if d.ShopID == uuid.Nil || d.WarehouseID == uuid.Nil {
		return nil
	}
	if err := f.Shop.AddShopWarehouse(ctx, d.ShopID, d.WarehouseID); err != nil {
		return fmt.Errorf("attach warehouse %s to shop %s: %w", d.WarehouseID, d.ShopID, err)
	}
	inst.State = StateWaitingForConfirmation
	return nil
}
