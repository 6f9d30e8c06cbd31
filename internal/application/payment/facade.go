// Package payment is the public entry point into the payment module.
package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/application/uow"
	"github.com/shopkit/backend/internal/domain/payment"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Facade handles payments for won listings
type Facade struct {
	uow    uow.UnitOfWork
	logger *zap.Logger
}

// NewFacade creates a new payment Facade
func NewFacade(u uow.UnitOfWork, logger *zap.Logger) *Facade {
	return &Facade{uow: u, logger: logger}
}

// StartPayment opens the pending payment of a listing and returns its id.
// A listing has at most one payment; starting it again returns the
// existing one.
func (f *Facade) StartPayment(ctx context.Context, listingID, buyerID uuid.UUID, amount decimal.Decimal, currency, procmanID string) (uuid.UUID, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "start_payment",
		telemetry.WithAttribute(telemetry.SpanAttrListingID, listingID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProcmanID, procmanID))
	defer span.End()

	var paymentID uuid.UUID
	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		existing, found, err := repos.Payments().FindByListing(ctx, listingID)
		if err != nil {
			return err
		}
		if found {
			f.logger.Info("payment already started, skipping",
				zap.String("listing_id", listingID.String()),
				zap.String("payment_id", existing.ID.String()))
			paymentID = existing.ID
			return nil
		}

		p, err := payment.NewPayment(listingID, buyerID, amount, currency, procmanID)
		if err != nil {
			return err
		}
		if err := repos.Payments().Save(ctx, p); err != nil {
			return err
		}
		paymentID = p.ID
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return uuid.Nil, fmt.Errorf("start payment for listing %s: %w", listingID, err)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())
	return paymentID, nil
}

// CapturePayment records the provider's capture of a payment. Capturing
// twice is a no-op.
func (f *Facade) CapturePayment(ctx context.Context, paymentID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "capture_payment",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID.String()))
	defer span.End()

	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		p, found, err := repos.Payments().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if !found {
			return shared.ErrNotFound
		}
		if !p.Capture() {
			f.logger.Info("payment already captured, skipping", zap.String("payment_id", paymentID.String()))
			return nil
		}
		if err := repos.Payments().Save(ctx, p); err != nil {
			return err
		}
		uow.RecordAggregate(repos, p)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("capture payment %s: %w", paymentID, err)
	}
	return nil
}
