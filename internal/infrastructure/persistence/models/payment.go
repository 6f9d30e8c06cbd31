package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/bidding"
	"github.com/shopkit/backend/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for the Payment aggregate
type PaymentModel struct {
	BaseModel
	ListingID  uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex"`
	BuyerID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Currency   string                `gorm:"type:varchar(3);not null"`
	Status     payment.PaymentStatus `gorm:"type:varchar(20);not null"`
	ProcmanID  string                `gorm:"type:varchar(64)"`
	CapturedAt *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *payment.Payment {
	return &payment.Payment{
		BaseAggregateRoot: m.aggregateRoot(),
		ListingID:         m.ListingID,
		BuyerID:           m.BuyerID,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Status:            m.Status,
		ProcmanID:         m.ProcmanID,
		CapturedAt:        m.CapturedAt,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *payment.Payment) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.ListingID = p.ListingID
	m.BuyerID = p.BuyerID
	m.Amount = p.Amount
	m.Currency = p.Currency
	m.Status = p.Status
	m.ProcmanID = p.ProcmanID
	m.CapturedAt = p.CapturedAt
}

// ListingModel is the persistence model for auction listings
type ListingModel struct {
	BaseModel
	Title         string                `gorm:"type:varchar(200);not null"`
	StartingPrice decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Currency      string                `gorm:"type:varchar(3);not null"`
	Status        bidding.ListingStatus `gorm:"type:varchar(20);not null"`
	WinnerID      *uuid.UUID            `gorm:"type:uuid"`
	WinnerEmail   string                `gorm:"type:varchar(320)"`
	FinalPrice    decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	PaymentID     *uuid.UUID            `gorm:"type:uuid"`
	ProcmanID     string                `gorm:"type:varchar(64)"`
	ClosedAt      *time.Time
	SoldAt        *time.Time
}

// TableName returns the table name for GORM
func (ListingModel) TableName() string {
	return "listings"
}

// ToDomain converts the persistence model to a domain Listing
func (m *ListingModel) ToDomain() *bidding.Listing {
	return &bidding.Listing{
		BaseAggregateRoot: m.aggregateRoot(),
		Title:             m.Title,
		StartingPrice:     m.StartingPrice,
		Currency:          m.Currency,
		Status:            m.Status,
		WinnerID:          m.WinnerID,
		WinnerEmail:       m.WinnerEmail,
		FinalPrice:        m.FinalPrice,
		PaymentID:         m.PaymentID,
		ProcmanID:         m.ProcmanID,
		ClosedAt:          m.ClosedAt,
		SoldAt:            m.SoldAt,
	}
}

// FromDomain populates the persistence model from a domain Listing
func (m *ListingModel) FromDomain(l *bidding.Listing) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.Title = l.Title
	m.StartingPrice = l.StartingPrice
	m.Currency = l.Currency
	m.Status = l.Status
	m.WinnerID = l.WinnerID
	m.WinnerEmail = l.WinnerEmail
	m.FinalPrice = l.FinalPrice
	m.PaymentID = l.PaymentID
	m.ProcmanID = l.ProcmanID
	m.ClosedAt = l.ClosedAt
	m.SoldAt = l.SoldAt
}
