package payment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusCaptured PaymentStatus = "captured"
)

// AggregateTypePayment is the aggregate type of Payment
const AggregateTypePayment = "Payment"

// EventTypePaymentCaptured is published when the payment provider confirms a capture
const EventTypePaymentCaptured = "PaymentCaptured"

// Payment is the buyer's payment for a won listing. There is at most one
// payment per listing.
type Payment struct {
	shared.BaseAggregateRoot
	ListingID  uuid.UUID
	BuyerID    uuid.UUID
	Amount     decimal.Decimal
	Currency   string
	Status     PaymentStatus
	ProcmanID  string
	CapturedAt *time.Time
}

// NewPayment creates a pending payment
func NewPayment(listingID, buyerID uuid.UUID, amount decimal.Decimal, currency, procmanID string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Currency must be a 3-letter ISO code")
	}
	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ListingID:         listingID,
		BuyerID:           buyerID,
		Amount:            amount,
		Currency:          currency,
		Status:            PaymentStatusPending,
		ProcmanID:         procmanID,
	}, nil
}

// Capture marks the payment as captured and records PaymentCapturedEvent.
// It returns false if the payment was already captured.
func (p *Payment) Capture() bool {
	if p.Status == PaymentStatusCaptured {
		return false
	}
	now := time.Now().UTC()
	p.Status = PaymentStatusCaptured
	p.CapturedAt = &now
	p.UpdatedAt = now
	p.AddDomainEvent(NewPaymentCapturedEvent(p))
	return true
}

// PaymentCapturedEvent is published when a payment is captured
type PaymentCapturedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	ListingID uuid.UUID       `json:"listing_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// NewPaymentCapturedEvent creates a new PaymentCapturedEvent
func NewPaymentCapturedEvent(p *Payment) *PaymentCapturedEvent {
	return &PaymentCapturedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCaptured, AggregateTypePayment, p.ID, p.ProcmanID),
		PaymentID:       p.ID,
		ListingID:       p.ListingID,
		Amount:          p.Amount,
		Currency:        p.Currency,
	}
}
