package bidding

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ListingStatus represents the status of an auction listing
type ListingStatus string

const (
	ListingStatusOpen ListingStatus = "open"
	ListingStatusWon  ListingStatus = "won"  // Closed with a winner, waiting for payment
	ListingStatusSold ListingStatus = "sold" // Paid
)

// AggregateTypeListing is the aggregate type of Listing
const AggregateTypeListing = "Listing"

// EventTypeListingWon starts the paying-for-won-item workflow
const EventTypeListingWon = "ListingWon"

// Listing is an auctioned item
type Listing struct {
	shared.BaseAggregateRoot
	Title         string
	StartingPrice decimal.Decimal
	Currency      string
	Status        ListingStatus
	WinnerID      *uuid.UUID
	WinnerEmail   string
	FinalPrice    decimal.Decimal
	PaymentID     *uuid.UUID
	ProcmanID     string
	ClosedAt      *time.Time
	SoldAt        *time.Time
}

// NewListing opens a listing
func NewListing(title string, startingPrice decimal.Decimal, currency string) (*Listing, error) {
	title = shared.NormalizeName(title)
	if title == "" {
		return nil, shared.NewDomainError("INVALID_TITLE", "Listing title cannot be empty")
	}
	if startingPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Starting price cannot be negative")
	}
	return &Listing{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Title:             title,
		StartingPrice:     startingPrice,
		Currency:          strings.ToUpper(currency),
		Status:            ListingStatusOpen,
	}, nil
}

// Close closes an open listing with a winning bid and records ListingWonEvent
// under a fresh procman id. It returns false if the listing was already closed.
func (l *Listing) Close(winnerID uuid.UUID, winnerEmail string, price decimal.Decimal) (bool, error) {
	if l.Status != ListingStatusOpen {
		return false, nil
	}
	if price.LessThan(l.StartingPrice) {
		return false, shared.NewDomainError("BID_TOO_LOW", "Winning bid is below the starting price")
	}
	now := time.Now().UTC()
	l.Status = ListingStatusWon
	l.WinnerID = &winnerID
	l.WinnerEmail = shared.NormalizeEmail(winnerEmail)
	l.FinalPrice = price
	l.ProcmanID = shared.NewProcmanID()
	l.ClosedAt = &now
	l.UpdatedAt = now
	l.AddDomainEvent(NewListingWonEvent(l))
	return true, nil
}

// CompleteSale marks a won listing as sold. It returns false if it already is.
func (l *Listing) CompleteSale(paymentID uuid.UUID) (bool, error) {
	switch l.Status {
	case ListingStatusSold:
		return false, nil
	case ListingStatusWon:
	default:
		return false, shared.ErrInvalidState
	}
	now := time.Now().UTC()
	l.Status = ListingStatusSold
	l.PaymentID = &paymentID
	l.SoldAt = &now
	l.UpdatedAt = now
	return true, nil
}

// ListingWonEvent is published when an auction closes with a winner
type ListingWonEvent struct {
	shared.BaseDomainEvent
	ListingID   uuid.UUID       `json:"listing_id"`
	Title       string          `json:"title"`
	WinnerID    uuid.UUID       `json:"winner_id"`
	WinnerEmail string          `json:"winner_email"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
}

// NewListingWonEvent creates a new ListingWonEvent
func NewListingWonEvent(l *Listing) *ListingWonEvent {
	return &ListingWonEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeListingWon, AggregateTypeListing, l.ID, l.ProcmanID),
		ListingID:       l.ID,
		Title:           l.Title,
		WinnerID:        *l.WinnerID,
		WinnerEmail:     l.WinnerEmail,
		Price:           l.FinalPrice,
		Currency:        l.Currency,
	}
}
