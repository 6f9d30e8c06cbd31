package saga

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/bidding"
	"github.com/shopkit/backend/internal/domain/payment"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopspring/decimal"
)

// SagaTypePayingForWonItem names the post-auction payment workflow
const SagaTypePayingForWonItem = "PayingForWonItem"

// StatePaymentRequested waits for the provider to capture the payment
const StatePaymentRequested = "PAYMENT_REQUESTED"

// PayingForWonItemTimeout is how long a winner has to pay
const PayingForWonItemTimeout = 7 * 24 * time.Hour

// PayingForWonItemData is accumulated while a winner pays
type PayingForWonItemData struct {
	ListingID    uuid.UUID       `json:"listing_id"`
	ListingTitle string          `json:"listing_title"`
	WinnerID     uuid.UUID       `json:"winner_id"`
	WinnerEmail  string          `json:"winner_email"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PaymentID    uuid.UUID       `json:"payment_id"`
}

// NewPayingForWonItemSaga builds the payment workflow started by a won auction
func NewPayingForWonItemSaga(f Facades) *Definition[PayingForWonItemData] {
	def := NewDefinition[PayingForWonItemData](SagaTypePayingForWonItem)

	On(def, bidding.EventTypeListingWon, procman.StateStarted,
		func(ctx context.Context, e *bidding.ListingWonEvent, inst *Instance[PayingForWonItemData]) error {
			paymentID, err := f.Payment.StartPayment(ctx, e.ListingID, e.WinnerID, e.Price, e.Currency, inst.ID)
			if err != nil {
				return err
			}
			if err := f.Customer.SendPaymentRequestEmail(ctx, e.WinnerEmail, e.Title, e.Price, e.Currency, paymentID); err != nil {
				return err
			}
			inst.Data = PayingForWonItemData{
				ListingID:    e.ListingID,
				ListingTitle: e.Title,
				WinnerID:     e.WinnerID,
				WinnerEmail:  e.WinnerEmail,
				Amount:       e.Price,
				Currency:     e.Currency,
				PaymentID:    paymentID,
			}
			inst.SetDeadline(PayingForWonItemTimeout)
			inst.State = StatePaymentRequested
			return nil
		})

	On(def, payment.EventTypePaymentCaptured, StatePaymentRequested,
		func(ctx context.Context, e *payment.PaymentCapturedEvent, inst *Instance[PayingForWonItemData]) error {
			d := inst.Data
			if err := f.Bidding.CompleteSale(ctx, d.ListingID, e.PaymentID); err != nil {
				return err
			}
			if err := f.Customer.SendPaymentReceivedEmail(ctx, d.WinnerEmail, d.ListingTitle, e.PaymentID); err != nil {
				return err
			}
			inst.TimeoutAt = nil
			inst.State = procman.StateFinished
			return nil
		})

	return def
}
