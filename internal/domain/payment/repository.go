package payment

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRepository defines persistence for payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, bool, error)
	FindByListing(ctx context.Context, listingID uuid.UUID) (*Payment, bool, error)
	Save(ctx context.Context, payment *Payment) error
}
