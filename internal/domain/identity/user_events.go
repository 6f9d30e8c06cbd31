package identity

import (
	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// Aggregate type constant for User
const AggregateTypeUser = "User"

// User domain event types
const (
	EventTypePendingUserCreated      = "PendingUserCreated"
	EventTypeUserDataChangeRequested = "UserDataChangeRequested"
	EventTypeUserDataChangeConfirmed = "UserDataChangeConfirmed"
)

// PendingUserCreatedEvent is published when a pending user is created for a registration
type PendingUserCreatedEvent struct {
	shared.BaseDomainEvent
	UserID         uuid.UUID `json:"user_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	Email          string    `json:"email"`
}

// NewPendingUserCreatedEvent creates a new PendingUserCreatedEvent
func NewPendingUserCreatedEvent(user *User, procmanID string) *PendingUserCreatedEvent {
	return &PendingUserCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePendingUserCreated, AggregateTypeUser, user.ID, procmanID),
		UserID:          user.ID,
		RegistrationID:  user.RegistrationID,
		Email:           user.Email,
	}
}

// UserDataChangeRequestedEvent is published when a user asks to change contact data
type UserDataChangeRequestedEvent struct {
	shared.BaseDomainEvent
	UserID            uuid.UUID `json:"user_id"`
	CurrentEmail      string    `json:"current_email"`
	NewEmail          string    `json:"new_email"`
	NewMobile         string    `json:"new_mobile"`
	ConfirmationToken string    `json:"confirmation_token"`
}

// NewUserDataChangeRequestedEvent creates a new UserDataChangeRequestedEvent
func NewUserDataChangeRequestedEvent(user *User, token string) *UserDataChangeRequestedEvent {
	return &UserDataChangeRequestedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeUserDataChangeRequested, AggregateTypeUser, user.ID, user.PendingChange.ProcmanID),
		UserID:            user.ID,
		CurrentEmail:      user.Email,
		NewEmail:          user.PendingChange.Email,
		NewMobile:         user.PendingChange.Mobile,
		ConfirmationToken: token,
	}
}

// UserDataChangeConfirmedEvent is published when the change token was confirmed
type UserDataChangeConfirmedEvent struct {
	shared.BaseDomainEvent
	UserID uuid.UUID `json:"user_id"`
}

// NewUserDataChangeConfirmedEvent creates a new UserDataChangeConfirmedEvent
func NewUserDataChangeConfirmedEvent(user *User) *UserDataChangeConfirmedEvent {
	return &UserDataChangeConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUserDataChangeConfirmed, AggregateTypeUser, user.ID, user.PendingChange.ProcmanID),
		UserID:          user.ID,
	}
}
