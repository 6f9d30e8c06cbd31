package bidding

import (
	"context"

	"github.com/google/uuid"
)

// ListingRepository defines persistence for listings
type ListingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Listing, bool, error)
	Save(ctx context.Context, listing *Listing) error
}
