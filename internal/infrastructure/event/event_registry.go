package event

import (
	"github.com/shopkit/backend/internal/domain/bidding"
	"github.com/shopkit/backend/internal/domain/catalog"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/domain/payment"
	"github.com/shopkit/backend/internal/domain/shop"
)

// RegisterAllEvents registers all domain event types with the serializer.
// Both the outbox writer and the relay refuse types missing from here.
func RegisterAllEvents(serializer *EventSerializer) {
	// Shop registration
	serializer.Register(shop.EventTypeShopRegistrationCreated, &shop.ShopRegistrationCreatedEvent{})
	serializer.Register(shop.EventTypeShopRegistrationConfirmed, &shop.ShopRegistrationConfirmedEvent{})
	serializer.Register(shop.EventTypePendingShopCreated, &shop.PendingShopCreatedEvent{})

	// Identity
	serializer.Register(identity.EventTypePendingUserCreated, &identity.PendingUserCreatedEvent{})
	serializer.Register(identity.EventTypeUserDataChangeRequested, &identity.UserDataChangeRequestedEvent{})
	serializer.Register(identity.EventTypeUserDataChangeConfirmed, &identity.UserDataChangeConfirmedEvent{})

	// Inventory
	serializer.Register(inventory.EventTypePendingWarehouseCreated, &inventory.PendingWarehouseCreatedEvent{})
	serializer.Register(inventory.EventTypeStockItemsCreated, &inventory.StockItemsCreatedEvent{})

	// Catalog
	serializer.Register(catalog.EventTypeProductCreated, &catalog.ProductCreatedEvent{})

	// Bidding and payment
	serializer.Register(bidding.EventTypeListingWon, &bidding.ListingWonEvent{})
	serializer.Register(payment.EventTypePaymentCaptured, &payment.PaymentCapturedEvent{})
}
