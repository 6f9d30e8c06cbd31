package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/bidding"
	"github.com/shopkit/backend/internal/domain/payment"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, bool, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByListing finds the payment requested for a listing
func (r *GormPaymentRepository) FindByListing(ctx context.Context, listingID uuid.UUID) (*payment.Payment, bool, error) {
	return r.findOne(ctx, "listing_id = ?", listingID)
}

func (r *GormPaymentRepository) findOne(ctx context.Context, query string, args ...any) (*payment.Payment, bool, error) {
	m, found, err := first[models.PaymentModel](r.db.WithContext(ctx), query, args...)
	if err != nil || !found {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

// Save inserts or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	m := &models.PaymentModel{}
	m.FromDomain(p)
	return translateWriteError("payments", r.db.WithContext(ctx).Save(m).Error)
}

// GormListingRepository implements ListingRepository using GORM
type GormListingRepository struct {
	db *gorm.DB
}

// NewGormListingRepository creates a new GormListingRepository
func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// FindByID finds a listing by ID
func (r *GormListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bidding.Listing, bool, error) {
	m, found, err := first[models.ListingModel](r.db.WithContext(ctx), "id = ?", id)
	if err != nil || !found {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

// Save inserts or updates a listing
func (r *GormListingRepository) Save(ctx context.Context, l *bidding.Listing) error {
	m := &models.ListingModel{}
	m.FromDomain(l)
	return translateWriteError("listings", r.db.WithContext(ctx).Save(m).Error)
}

var (
	_ payment.PaymentRepository = (*GormPaymentRepository)(nil)
	_ bidding.ListingRepository = (*GormListingRepository)(nil)
)
