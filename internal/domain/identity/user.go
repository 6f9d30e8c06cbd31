package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// UserStatus represents the status of a user
type UserStatus string

const (
	UserStatusPending UserStatus = "pending" // Created by a registration, awaiting confirmation
	UserStatusActive  UserStatus = "active"
)

// User is the identity aggregate root. A pending user is created for every
// shop registration and becomes active once the registration is confirmed.
type User struct {
	shared.BaseAggregateRoot
	RegistrationID uuid.UUID
	Email          string
	Mobile         string
	Status         UserStatus
	ActivatedAt    *time.Time
	PendingChange  *DataChange
}

// DataChange is a requested update of the user's contact data that waits
// for confirmation through a mailed token
type DataChange struct {
	Email       string
	Mobile      string
	TokenHash   string
	ProcmanID   string
	RequestedAt time.Time
	ConfirmedAt *time.Time
}

// NewPendingUser creates a pending user for a shop registration
func NewPendingUser(registrationID uuid.UUID, email, mobile, procmanID string) (*User, error) {
	if registrationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_REGISTRATION", "Registration ID cannot be empty")
	}
	email = shared.NormalizeEmail(email)
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}

	user := &User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		RegistrationID:    registrationID,
		Email:             email,
		Mobile:            mobile,
		Status:            UserStatusPending,
	}
	user.AddDomainEvent(NewPendingUserCreatedEvent(user, procmanID))
	return user, nil
}

// IsActive returns true if the user has been activated
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Activate activates a pending user. It returns false if the user was
// already active.
func (u *User) Activate() bool {
	if u.IsActive() {
		return false
	}
	now := time.Now().UTC()
	u.Status = UserStatusActive
	u.ActivatedAt = &now
	u.UpdatedAt = now
	return true
}

// RequestDataChange stores a pending contact data change. The plain token is
// carried by the emitted event so the confirmation mail can include it.
func (u *User) RequestDataChange(email, mobile, token, tokenHash, procmanID string) error {
	if !u.IsActive() {
		return shared.NewDomainError("USER_NOT_ACTIVE", "Only active users can change their data")
	}
	if u.PendingChange != nil && u.PendingChange.ConfirmedAt == nil {
		return shared.NewDomainError("CHANGE_IN_PROGRESS", "A data change is already waiting for confirmation")
	}

	u.PendingChange = &DataChange{
		Email:       shared.NormalizeEmail(email),
		Mobile:      mobile,
		TokenHash:   tokenHash,
		ProcmanID:   procmanID,
		RequestedAt: time.Now().UTC(),
	}
	u.UpdatedAt = time.Now().UTC()
	u.AddDomainEvent(NewUserDataChangeRequestedEvent(u, token))
	return nil
}

// ConfirmDataChange verifies the token of the pending change. It returns
// false if the change was already confirmed.
func (u *User) ConfirmDataChange(token string) (bool, error) {
	if u.PendingChange == nil {
		return false, shared.NewDomainError("NO_PENDING_CHANGE", "No data change is pending")
	}
	if u.PendingChange.ConfirmedAt != nil {
		return false, nil
	}
	if !shared.VerifyConfirmationToken(u.PendingChange.TokenHash, token) {
		return false, shared.ErrInvalidToken
	}

	now := time.Now().UTC()
	u.PendingChange.ConfirmedAt = &now
	u.UpdatedAt = now
	u.AddDomainEvent(NewUserDataChangeConfirmedEvent(u))
	return true, nil
}

// ApplyDataChange copies a confirmed change onto the user. It returns false
// when there is nothing to apply.
func (u *User) ApplyDataChange() bool {
	if u.PendingChange == nil || u.PendingChange.ConfirmedAt == nil {
		return false
	}
	u.Email = u.PendingChange.Email
	u.Mobile = u.PendingChange.Mobile
	u.PendingChange = nil
	u.UpdatedAt = time.Now().UTC()
	return true
}
