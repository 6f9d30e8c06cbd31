// Package customer is the public entry point into the customer relationship
// module, which owns every email the platform sends.
package customer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/application/uow"
	"github.com/shopkit/backend/internal/domain/customer"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Facade sends customer emails. Each email is stored as a notification keyed
// by template, recipient and a reference; an email whose notification is
// already sent is skipped, so replayed events never mail twice.
type Facade struct {
	uow       uow.UnitOfWork
	transport customer.MailTransport
	renderer  *Renderer
	from      string
	logger    *zap.Logger
}

// NewFacade creates a new customer Facade
func NewFacade(u uow.UnitOfWork, transport customer.MailTransport, renderer *Renderer, from string, logger *zap.Logger) *Facade {
	return &Facade{
		uow:       u,
		transport: transport,
		renderer:  renderer,
		from:      from,
		logger:    logger,
	}
}

// SendStoreRegistrationConfirmationTokenEmail mails the registration token
// to a prospective shop owner
func (f *Facade) SendStoreRegistrationConfirmationTokenEmail(ctx context.Context, shopName, confirmationToken, ownerEmail string) error {
	return f.send(ctx, customer.TemplateRegistrationToken, ownerEmail, tokenReference(confirmationToken), map[string]any{
		"ShopName": shopName,
		"Token":    confirmationToken,
	})
}

// SendShopCreatedEmail tells the owner that the shop is active. The shop
// id is the dedup reference; names are not unique.
func (f *Facade) SendShopCreatedEmail(ctx context.Context, shopID uuid.UUID, shopName, ownerEmail string) error {
	return f.send(ctx, customer.TemplateShopCreated, ownerEmail, shopID.String(), map[string]any{
		"ShopName": shopName,
	})
}

// SendUserDataChangeConfirmationEmail mails the token that confirms a
// contact data change. It goes to the new address, which proves the user
// can read it.
func (f *Facade) SendUserDataChangeConfirmationEmail(ctx context.Context, email, confirmationToken string) error {
	return f.send(ctx, customer.TemplateUserDataChangeToken, email, tokenReference(confirmationToken), map[string]any{
		"Token": confirmationToken,
	})
}

// SendUserDataChangedEmail confirms an applied contact data change.
// changeID identifies the change, usually its procman id.
func (f *Facade) SendUserDataChangedEmail(ctx context.Context, email, changeID string) error {
	return f.send(ctx, customer.TemplateUserDataChanged, email, changeID, map[string]any{
		"Email": email,
	})
}

// SendPaymentRequestEmail asks the winner of a listing to pay
func (f *Facade) SendPaymentRequestEmail(ctx context.Context, email, listingTitle string, amount decimal.Decimal, currency string, paymentID uuid.UUID) error {
	return f.send(ctx, customer.TemplatePaymentRequest, email, paymentID.String(), map[string]any{
		"Title":     listingTitle,
		"Amount":    amount.StringFixed(2),
		"Currency":  currency,
		"PaymentID": paymentID.String(),
	})
}

// SendPaymentReceivedEmail confirms a captured payment to the buyer
func (f *Facade) SendPaymentReceivedEmail(ctx context.Context, email, listingTitle string, paymentID uuid.UUID) error {
	return f.send(ctx, customer.TemplatePaymentReceived, email, paymentID.String(), map[string]any{
		"Title":     listingTitle,
		"PaymentID": paymentID.String(),
	})
}

// send records the notification, commits, then hands it to the transport.
// The delivery outcome is stored in a second unit of work.
func (f *Facade) send(ctx context.Context, tpl customer.Template, recipient, reference string, data map[string]any) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer", "send_"+string(tpl),
		telemetry.WithAttribute(telemetry.SpanAttrTemplate, string(tpl)))
	defer span.End()

	subject, body, err := f.renderer.Render(tpl, data)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	key := customer.DedupKey(tpl, recipient, reference)

	var notification *customer.Notification
	err = f.uow.Execute(ctx, func(repos uow.Repositories) error {
		existing, found, err := repos.Notifications().FindByDedupKey(ctx, key)
		if err != nil {
			return err
		}
		if found {
			notification = existing
			return nil
		}
		n, err := customer.NewNotification(tpl, recipient, reference, subject, body)
		if err != nil {
			return err
		}
		if err := repos.Notifications().Save(ctx, n); err != nil {
			return err
		}
		notification = n
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("record %s notification: %w", tpl, err)
	}
	if notification.IsSent() {
		f.logger.Info("notification already sent, skipping",
			zap.String("template", string(tpl)),
			zap.String("notification_id", notification.ID.String()))
		return nil
	}

	sendErr := f.transport.Send(ctx, customer.Message{
		ID:      notification.ID.String(),
		From:    f.from,
		To:      notification.Recipient,
		Subject: notification.Subject,
		Body:    notification.Body,
	})
	if sendErr != nil {
		notification.MarkFailed(sendErr.Error())
	} else {
		notification.MarkSent()
	}

	err = f.uow.Execute(ctx, func(repos uow.Repositories) error {
		return repos.Notifications().Save(ctx, notification)
	})
	if sendErr != nil {
		telemetry.RecordError(span, sendErr)
		f.logger.Warn("mail delivery failed",
			zap.String("template", string(tpl)),
			zap.String("notification_id", notification.ID.String()),
			zap.Int("attempts", notification.Attempts),
			zap.Error(sendErr))
		return fmt.Errorf("send %s notification %s: %w", tpl, notification.ID, sendErr)
	}
	if err != nil {
		// the mail is out; a later replay may send it again
		f.logger.Error("failed to record mail delivery",
			zap.String("notification_id", notification.ID.String()),
			zap.Error(err))
		return fmt.Errorf("record delivery of notification %s: %w", notification.ID, err)
	}
	return nil
}

// tokenReference derives a stable notification reference from a token
// without storing the token in the dedup key
func tokenReference(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
