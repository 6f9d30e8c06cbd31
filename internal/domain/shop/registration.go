package shop

import (
	"time"

	"github.com/shopkit/backend/internal/domain/shared"
)

// RegistrationStatus represents the status of a shop registration
type RegistrationStatus string

const (
	RegistrationStatusAwaitingConfirmation RegistrationStatus = "awaiting_confirmation"
	RegistrationStatusConfirmed            RegistrationStatus = "confirmed"
)

// ShopRegistration is the request of a prospective owner to open a shop.
// Its ID doubles as the procman id of the registration workflow.
type ShopRegistration struct {
	shared.BaseAggregateRoot
	ShopName    string
	OwnerEmail  string
	OwnerMobile string
	TokenHash   string
	Status      RegistrationStatus
	ConfirmedAt *time.Time
}

// NewShopRegistration creates a registration and records
// ShopRegistrationCreatedEvent carrying the plain confirmation token
func NewShopRegistration(shopName, ownerEmail, ownerMobile, token, tokenHash string) (*ShopRegistration, error) {
	shopName = shared.NormalizeName(shopName)
	if shopName == "" {
		return nil, shared.NewDomainError("INVALID_SHOP_NAME", "Shop name cannot be empty")
	}
	ownerEmail = shared.NormalizeEmail(ownerEmail)
	if ownerEmail == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Owner email cannot be empty")
	}

	r := &ShopRegistration{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ShopName:          shopName,
		OwnerEmail:        ownerEmail,
		OwnerMobile:       ownerMobile,
		TokenHash:         tokenHash,
		Status:            RegistrationStatusAwaitingConfirmation,
	}
	r.AddDomainEvent(NewShopRegistrationCreatedEvent(r, token))
	return r, nil
}

// ProcmanID returns the correlation id of the registration workflow
func (r *ShopRegistration) ProcmanID() string {
	return r.ID.String()
}

// Confirm checks the token and confirms the registration. It returns false
// if the registration was already confirmed.
func (r *ShopRegistration) Confirm(token string) (bool, error) {
	if r.Status == RegistrationStatusConfirmed {
		return false, nil
	}
	if !shared.VerifyConfirmationToken(r.TokenHash, token) {
		return false, shared.ErrInvalidToken
	}
	now := time.Now().UTC()
	r.Status = RegistrationStatusConfirmed
	r.ConfirmedAt = &now
	r.UpdatedAt = now
	r.AddDomainEvent(NewShopRegistrationConfirmedEvent(r))
	return true, nil
}
