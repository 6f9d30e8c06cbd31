package models

import (
	"time"

	"github.com/shopkit/backend/internal/domain/customer"
)

// NotificationModel is the persistence model for the notification log
type NotificationModel struct {
	BaseModel
	DedupKey  string                      `gorm:"type:varchar(400);not null;uniqueIndex"`
	Template  customer.Template           `gorm:"type:varchar(50);not null"`
	Recipient string                      `gorm:"type:varchar(320);not null;index"`
	Subject   string                      `gorm:"type:varchar(300);not null"`
	Body      string                      `gorm:"type:text;not null"`
	Status    customer.NotificationStatus `gorm:"type:varchar(20);not null"`
	Attempts  int                         `gorm:"not null;default:0"`
	LastError string                      `gorm:"type:text"`
	SentAt    *time.Time
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the persistence model to a domain Notification
func (m *NotificationModel) ToDomain() *customer.Notification {
	return &customer.Notification{
		BaseEntity: m.BaseModel.ToDomain(),
		DedupKey:   m.DedupKey,
		Template:   m.Template,
		Recipient:  m.Recipient,
		Subject:    m.Subject,
		Body:       m.Body,
		Status:     m.Status,
		Attempts:   m.Attempts,
		LastError:  m.LastError,
		SentAt:     m.SentAt,
	}
}

// FromDomain populates the persistence model from a domain Notification
func (m *NotificationModel) FromDomain(n *customer.Notification) {
	m.FromDomainBaseEntity(n.BaseEntity)
	m.DedupKey = n.DedupKey
	m.Template = n.Template
	m.Recipient = n.Recipient
	m.Subject = n.Subject
	m.Body = n.Body
	m.Status = n.Status
	m.Attempts = n.Attempts
	m.LastError = n.LastError
	m.SentAt = n.SentAt
}
