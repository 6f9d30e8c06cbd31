package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/identity"
)

// UserModel is the persistence model for the User aggregate
type UserModel struct {
	BaseModel
	RegistrationID     uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex"`
	Email              string              `gorm:"type:varchar(320);not null;index"`
	Mobile             string              `gorm:"type:varchar(50)"`
	Status             identity.UserStatus `gorm:"type:varchar(20);not null"`
	ActivatedAt        *time.Time
	PendingEmail       string     `gorm:"type:varchar(320)"`
	PendingMobile      string     `gorm:"type:varchar(50)"`
	PendingTokenHash   string     `gorm:"type:varchar(100)"`
	PendingProcmanID   string     `gorm:"type:varchar(64)"`
	PendingRequestedAt *time.Time
	PendingConfirmedAt *time.Time
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User
func (m *UserModel) ToDomain() *identity.User {
	u := &identity.User{
		BaseAggregateRoot: m.aggregateRoot(),
		RegistrationID:    m.RegistrationID,
		Email:             m.Email,
		Mobile:            m.Mobile,
		Status:            m.Status,
		ActivatedAt:       m.ActivatedAt,
	}
	if m.PendingRequestedAt != nil {
		u.PendingChange = &identity.DataChange{
			Email:       m.PendingEmail,
			Mobile:      m.PendingMobile,
			TokenHash:   m.PendingTokenHash,
			ProcmanID:   m.PendingProcmanID,
			RequestedAt: *m.PendingRequestedAt,
			ConfirmedAt: m.PendingConfirmedAt,
		}
	}
	return u
}

// FromDomain populates the persistence model from a domain User
func (m *UserModel) FromDomain(u *identity.User) {
	m.FromDomainBaseEntity(u.BaseEntity)
	m.RegistrationID = u.RegistrationID
	m.Email = u.Email
	m.Mobile = u.Mobile
	m.Status = u.Status
	m.ActivatedAt = u.ActivatedAt
	m.PendingEmail, m.PendingMobile, m.PendingTokenHash, m.PendingProcmanID = "", "", "", ""
	m.PendingRequestedAt, m.PendingConfirmedAt = nil, nil
	if c := u.PendingChange; c != nil {
		requested := c.RequestedAt
		m.PendingEmail = c.Email
		m.PendingMobile = c.Mobile
		m.PendingTokenHash = c.TokenHash
		m.PendingProcmanID = c.ProcmanID
		m.PendingRequestedAt = &requested
		m.PendingConfirmedAt = c.ConfirmedAt
	}
}
