package saga

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdentityFacade is the part of the identity module sagas call
type IdentityFacade interface {
	CreatePendingUser(ctx context.Context, registrationID uuid.UUID, email, mobile, procmanID string) error
	ActivateUser(ctx context.Context, userID uuid.UUID) error
	ApplyUserDataChange(ctx context.Context, userID uuid.UUID) error
}

// ShopFacade is the part of the shop module sagas call
type ShopFacade interface {
	CreatePendingShop(ctx context.Context, userID uuid.UUID, name, ownerEmail, procmanID string) error
	CreateDefaultCatalog(ctx context.Context, shopID uuid.UUID) error
	AddShopWarehouse(ctx context.Context, shopID, warehouseID uuid.UUID) error
	ActivatePendingShop(ctx context.Context, shopID uuid.UUID) error
	UpdateOwnerContact(ctx context.Context, ownerID uuid.UUID, email, mobile string) error
	PublishProduct(ctx context.Context, productID uuid.UUID) error
}

// InventoryFacade is the part of the inventory module sagas call
type InventoryFacade interface {
	CreatePendingWarehouse(ctx context.Context, userID uuid.UUID, warehouseName, procmanID string) error
	ActivatePendingWarehouse(ctx context.Context, warehouseID, userID uuid.UUID) error
	CreateStockItems(ctx context.Context, productID uuid.UUID, warehouseIDs []uuid.UUID, procmanID string) error
}

// CustomerFacade sends the customer facing notifications
type CustomerFacade interface {
	SendStoreRegistrationConfirmationTokenEmail(ctx context.Context, shopName, confirmationToken, ownerEmail string) error
	SendShopCreatedEmail(ctx context.Context, shopID uuid.UUID, shopName, ownerEmail string) error
	SendUserDataChangeConfirmationEmail(ctx context.Context, email, confirmationToken string) error
	SendUserDataChangedEmail(ctx context.Context, email, changeID string) error
	SendPaymentRequestEmail(ctx context.Context, email, listingTitle string, amount decimal.Decimal, currency string, paymentID uuid.UUID) error
	SendPaymentReceivedEmail(ctx context.Context, email, listingTitle string, paymentID uuid.UUID) error
}

// PaymentFacade is the part of the payment module sagas call
type PaymentFacade interface {
	StartPayment(ctx context.Context, listingID, buyerID uuid.UUID, amount decimal.Decimal, currency, procmanID string) (uuid.UUID, error)
}

// BiddingFacade is the part of the auction module sagas call
type BiddingFacade interface {
	CompleteSale(ctx context.Context, listingID, paymentID uuid.UUID) error
}

// Facades bundles the module entry points the sagas drive
type Facades struct {
	Identity  IdentityFacade
	Shop      ShopFacade
	Inventory InventoryFacade
	Customer  CustomerFacade
	Payment   PaymentFacade
	Bidding   BiddingFacade
}
