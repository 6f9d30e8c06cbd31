package customer

import (
	"context"
	"strings"
	"time"

	"github.com/shopkit/backend/internal/domain/shared"
)

// Template identifies the kind of email a notification carries
type Template string

const (
	TemplateRegistrationToken   Template = "registration_token"
	TemplateShopCreated         Template = "shop_created"
	TemplateUserDataChangeToken Template = "user_data_change_token"
	TemplateUserDataChanged     Template = "user_data_changed"
	TemplatePaymentRequest      Template = "payment_request"
	TemplatePaymentReceived     Template = "payment_received"
)

// NotificationStatus represents the delivery status of a notification
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
)

// Notification is an email the platform owes to a customer. The dedup key
// makes sending idempotent across redelivered events.
type Notification struct {
	shared.BaseEntity
	DedupKey  string
	Template  Template
	Recipient string
	Subject   string
	Body      string
	Status    NotificationStatus
	Attempts  int
	LastError string
	SentAt    *time.Time
}

// NewNotification creates a pending notification
func NewNotification(template Template, recipient, reference, subject, body string) (*Notification, error) {
	recipient = shared.NormalizeEmail(recipient)
	if recipient == "" {
		return nil, shared.NewDomainError("INVALID_RECIPIENT", "Recipient cannot be empty")
	}
	return &Notification{
		BaseEntity: shared.NewBaseEntity(),
		DedupKey:   DedupKey(template, recipient, reference),
		Template:   template,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		Status:     NotificationStatusPending,
	}, nil
}

// DedupKey builds the idempotency key of a notification
func DedupKey(template Template, recipient, reference string) string {
	return strings.Join([]string{string(template), shared.NormalizeEmail(recipient), reference}, ":")
}

// IsSent returns true once the transport accepted the message
func (n *Notification) IsSent() bool {
	return n.Status == NotificationStatusSent
}

// MarkSent records a successful delivery
func (n *Notification) MarkSent() {
	now := time.Now().UTC()
	n.Status = NotificationStatusSent
	n.Attempts++
	n.LastError = ""
	n.SentAt = &now
	n.UpdatedAt = now
}

// MarkFailed records a failed delivery attempt
func (n *Notification) MarkFailed(errMsg string) {
	n.Attempts++
	n.LastError = errMsg
	n.UpdatedAt = time.Now().UTC()
}

// NotificationRepository defines persistence for notifications
type NotificationRepository interface {
	FindByDedupKey(ctx context.Context, key string) (*Notification, bool, error)
	Save(ctx context.Context, notification *Notification) error
}

// Message is a rendered email handed to a MailTransport
type Message struct {
	ID      string
	From    string
	To      string
	Subject string
	Body    string
}

// MailTransport delivers rendered emails
type MailTransport interface {
	Send(ctx context.Context, msg Message) error
}
