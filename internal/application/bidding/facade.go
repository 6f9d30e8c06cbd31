// Package bidding is the public entry point into the auction module.
package bidding

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/application/uow"
	"github.com/shopkit/backend/internal/application/validation"
	"github.com/shopkit/backend/internal/domain/bidding"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type openListingCommand struct {
	Title    string `json:"title" validate:"required,max=200"`
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

type closeListingCommand struct {
	WinnerID    uuid.UUID `json:"winner_id" validate:"required"`
	WinnerEmail string    `json:"winner_email" validate:"required,email,max=254"`
	Currency    string    `json:"currency" validate:"required,len=3,alpha"`
}

// Facade handles auction listings
type Facade struct {
	uow    uow.UnitOfWork
	logger *zap.Logger
}

// NewFacade creates a new bidding Facade
func NewFacade(u uow.UnitOfWork, logger *zap.Logger) *Facade {
	return &Facade{uow: u, logger: logger}
}

// OpenListing puts an item up for auction
func (f *Facade) OpenListing(ctx context.Context, title string, startingPrice decimal.Decimal, currency string) (uuid.UUID, error) {
	if err := validation.Struct(openListingCommand{Title: title, Currency: currency}); err != nil {
		return uuid.Nil, err
	}
	l, err := bidding.NewListing(title, startingPrice, currency)
	if err != nil {
		return uuid.Nil, err
	}
	err = f.uow.Execute(ctx, func(repos uow.Repositories) error {
		return repos.Listings().Save(ctx, l)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("open listing %q: %w", title, err)
	}
	return l.ID, nil
}

// CloseListing closes a listing with its winning bid and starts the payment
// workflow. Closing an already closed listing is a no-op.
func (f *Facade) CloseListing(ctx context.Context, listingID, winnerID uuid.UUID, winnerEmail string, price decimal.Decimal, currency string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "bidding", "close_listing",
		telemetry.WithAttribute(telemetry.SpanAttrListingID, listingID.String()))
	defer span.End()

	cmd := closeListingCommand{WinnerID: winnerID, WinnerEmail: winnerEmail, Currency: currency}
	if err := validation.Struct(cmd); err != nil {
		return err
	}

	err := f.withListing(ctx, listingID, func(repos uow.Repositories, l *bidding.Listing) error {
		if !strings.EqualFold(l.Currency, currency) {
			return fmt.Errorf("listing is priced in %s, bid in %s: %w", l.Currency, currency, shared.ErrInvalidInput)
		}
		closed, err := l.Close(winnerID, winnerEmail, price)
		if err != nil {
			return err
		}
		if !closed {
			f.logger.Info("listing already closed, skipping", zap.String("listing_id", listingID.String()))
			return nil
		}
		if err := repos.Listings().Save(ctx, l); err != nil {
			return err
		}
		uow.RecordAggregate(repos, l)
		telemetry.SetAttribute(span, telemetry.SpanAttrProcmanID, l.ProcmanID)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("close listing %s: %w", listingID, err)
	}
	return nil
}

// CompleteSale marks a won listing as paid
func (f *Facade) CompleteSale(ctx context.Context, listingID, paymentID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "bidding", "complete_sale",
		telemetry.WithAttribute(telemetry.SpanAttrListingID, listingID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID.String()))
	defer span.End()

	err := f.withListing(ctx, listingID, func(repos uow.Repositories, l *bidding.Listing) error {
		completed, err := l.CompleteSale(paymentID)
		if err != nil {
			return err
		}
		if !completed {
			f.logger.Info("listing already sold, skipping", zap.String("listing_id", listingID.String()))
			return nil
		}
		return repos.Listings().Save(ctx, l)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("complete sale of listing %s: %w", listingID, err)
	}
	return nil
}

// withListing loads a listing inside a unit of work and runs fn on it
func (f *Facade) withListing(ctx context.Context, listingID uuid.UUID, fn func(repos uow.Repositories, l *bidding.Listing) error) error {
	return f.uow.Execute(ctx, func(repos uow.Repositories) error {
		l, found, err := repos.Listings().FindByID(ctx, listingID)
		if err != nil {
			return err
		}
		if !found {
			return shared.ErrNotFound
		}
		return fn(repos, l)
	})
}
