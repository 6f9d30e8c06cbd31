package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/application/uow"
	"github.com/shopkit/backend/internal/domain/payment"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPaymentRepository is a mock implementation of payment.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*payment.Payment), args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) FindByListing(ctx context.Context, listingID uuid.UUID) (*payment.Payment, bool, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*payment.Payment), args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func newTestFacade() (*Facade, *uow.NoOpUnitOfWork, *MockPaymentRepository) {
	repo := new(MockPaymentRepository)
	u := uow.NewNoOpUnitOfWork(uow.RepositorySet{Payments: repo}, nil)
	return NewFacade(u, zap.NewNop()), u, repo
}

func TestFacade_StartPayment(t *testing.T) {
	ctx := context.Background()
	listingID, buyerID := uuid.New(), uuid.New()
	amount := decimal.NewFromInt(42)

	t.Run("creates one payment per listing", func(t *testing.T) {
		facade, u, repo := newTestFacade()
		repo.On("FindByListing", mock.Anything, listingID).Return(nil, false, nil)
		repo.On("Save", mock.Anything, mock.MatchedBy(func(p *payment.Payment) bool {
			return p.ListingID == listingID && p.Currency == "EUR" && p.ProcmanID == "pm-1"
		})).Return(nil)

		id, err := facade.StartPayment(ctx, listingID, buyerID, amount, "eur", "pm-1")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		assert.Empty(t, u.Dispatched)
	})

	t.Run("existing payment is returned", func(t *testing.T) {
		facade, _, repo := newTestFacade()
		existing, _ := payment.NewPayment(listingID, buyerID, amount, "EUR", "pm-1")
		repo.On("FindByListing", mock.Anything, listingID).Return(existing, true, nil)

		id, err := facade.StartPayment(ctx, listingID, buyerID, amount, "EUR", "pm-1")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, id)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("invalid amount", func(t *testing.T) {
		facade, _, repo := newTestFacade()
		repo.On("FindByListing", mock.Anything, listingID).Return(nil, false, nil)

		_, err := facade.StartPayment(ctx, listingID, buyerID, decimal.Zero, "EUR", "pm-1")
		assert.Error(t, err)
	})
}

func TestFacade_CapturePayment(t *testing.T) {
	ctx := context.Background()
	facade, u, repo := newTestFacade()
	p, _ := payment.NewPayment(uuid.New(), uuid.New(), decimal.NewFromInt(42), "EUR", "pm-1")
	repo.On("FindByID", mock.Anything, p.ID).Return(p, true, nil)
	repo.On("Save", mock.Anything, p).Return(nil).Once()

	require.NoError(t, facade.CapturePayment(ctx, p.ID))
	require.NoError(t, facade.CapturePayment(ctx, p.ID))

	require.Len(t, u.Dispatched, 1)
	evt := u.Dispatched[0].(*payment.PaymentCapturedEvent)
	assert.Equal(t, p.ID, evt.PaymentID)
	assert.Equal(t, "pm-1", evt.ProcmanID())

	missing := uuid.New()
	repo.On("FindByID", mock.Anything, missing).Return(nil, false, nil)
	assert.ErrorIs(t, facade.CapturePayment(ctx, missing), shared.ErrNotFound)
}
