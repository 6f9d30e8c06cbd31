package shop

import (
	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeShopRegistration = "ShopRegistration"
	AggregateTypeShop             = "Shop"
)

// Shop domain event types
const (
	EventTypeShopRegistrationCreated   = "ShopRegistrationCreated"
	EventTypeShopRegistrationConfirmed = "ShopRegistrationConfirmed"
	EventTypePendingShopCreated        = "PendingShopCreated"
)

// ShopRegistrationCreatedEvent starts the shop registration workflow
type ShopRegistrationCreatedEvent struct {
	shared.BaseDomainEvent
	RegistrationID    uuid.UUID `json:"registration_id"`
	ShopName          string    `json:"shop_name"`
	OwnerEmail        string    `json:"owner_email"`
	OwnerMobile       string    `json:"owner_mobile"`
	ConfirmationToken string    `json:"confirmation_token"`
}

// NewShopRegistrationCreatedEvent creates a new ShopRegistrationCreatedEvent
func NewShopRegistrationCreatedEvent(r *ShopRegistration, token string) *ShopRegistrationCreatedEvent {
	return &ShopRegistrationCreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeShopRegistrationCreated, AggregateTypeShopRegistration, r.ID, r.ProcmanID()),
		RegistrationID:    r.ID,
		ShopName:          r.ShopName,
		OwnerEmail:        r.OwnerEmail,
		OwnerMobile:       r.OwnerMobile,
		ConfirmationToken: token,
	}
}

// ShopRegistrationConfirmedEvent is published when the owner confirms the registration token
type ShopRegistrationConfirmedEvent struct {
	shared.BaseDomainEvent
	RegistrationID uuid.UUID `json:"registration_id"`
}

// NewShopRegistrationConfirmedEvent creates a new ShopRegistrationConfirmedEvent
func NewShopRegistrationConfirmedEvent(r *ShopRegistration) *ShopRegistrationConfirmedEvent {
	return &ShopRegistrationConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShopRegistrationConfirmed, AggregateTypeShopRegistration, r.ID, r.ProcmanID()),
		RegistrationID:  r.ID,
	}
}

// PendingShopCreatedEvent is published when a pending shop row exists
type PendingShopCreatedEvent struct {
	shared.BaseDomainEvent
	ShopID  uuid.UUID `json:"shop_id"`
	OwnerID uuid.UUID `json:"owner_id"`
}

// NewPendingShopCreatedEvent creates a new PendingShopCreatedEvent
func NewPendingShopCreatedEvent(s *Shop, procmanID string) *PendingShopCreatedEvent {
	return &PendingShopCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePendingShopCreated, AggregateTypeShop, s.ID, procmanID),
		ShopID:          s.ID,
		OwnerID:         s.OwnerID,
	}
}
