package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/identity"
)

// createPendingUserCommand is validated before a pending user is created
type createPendingUserCommand struct {
	RegistrationID uuid.UUID `json:"registration_id" validate:"required"`
	Email          string    `json:"email" validate:"required,email,max=254"`
	Mobile         string    `json:"mobile" validate:"max=32"`
	ProcmanID      string    `json:"procman_id" validate:"required"`
}

// requestDataChangeCommand is validated before a data change is stored
type requestDataChangeCommand struct {
	UserID    uuid.UUID `json:"user_id" validate:"required"`
	NewEmail  string    `json:"new_email" validate:"required,email,max=254"`
	NewMobile string    `json:"new_mobile" validate:"max=32"`
}

// UserView is the read model of a user handed out of the module
type UserView struct {
	ID             uuid.UUID  `json:"id"`
	RegistrationID uuid.UUID  `json:"registration_id"`
	Email          string     `json:"email"`
	Mobile         string     `json:"mobile"`
	Status         string     `json:"status"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty"`
	PendingEmail   string     `json:"pending_email,omitempty"`
	PendingMobile  string     `json:"pending_mobile,omitempty"`
}

// ToUserView converts a domain user to its view
func ToUserView(u *identity.User) UserView {
	v := UserView{
		ID:             u.ID,
		RegistrationID: u.RegistrationID,
		Email:          u.Email,
		Mobile:         u.Mobile,
		Status:         string(u.Status),
		ActivatedAt:    u.ActivatedAt,
	}
	if u.PendingChange != nil {
		v.PendingEmail = u.PendingChange.Email
		v.PendingMobile = u.PendingChange.Mobile
	}
	return v
}
