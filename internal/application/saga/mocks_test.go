package saga

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockIdentityFacade is a mock implementation of IdentityFacade
type MockIdentityFacade struct {
	mock.Mock
}

func (m *MockIdentityFacade) CreatePendingUser(ctx context.Context, registrationID uuid.UUID, email, mobile, procmanID string) error {
	return m.Called(ctx, registrationID, email, mobile, procmanID).Error(0)
}

func (m *MockIdentityFacade) ActivateUser(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockIdentityFacade) ApplyUserDataChange(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

// MockShopFacade is a mock implementation of ShopFacade
type MockShopFacade struct {
	mock.Mock
}

func (m *MockShopFacade) CreatePendingShop(ctx context.Context, userID uuid.UUID, name, ownerEmail, procmanID string) error {
	return m.Called(ctx, userID, name, ownerEmail, procmanID).Error(0)
}

func (m *MockShopFacade) CreateDefaultCatalog(ctx context.Context, shopID uuid.UUID) error {
	return m.Called(ctx, shopID).Error(0)
}

func (m *MockShopFacade) AddShopWarehouse(ctx context.Context, shopID, warehouseID uuid.UUID) error {
	return m.Called(ctx, shopID, warehouseID).Error(0)
}

func (m *MockShopFacade) ActivatePendingShop(ctx context.Context, shopID uuid.UUID) error {
	return m.Called(ctx, shopID).Error(0)
}

func (m *MockShopFacade) UpdateOwnerContact(ctx context.Context, ownerID uuid.UUID, email, mobile string) error {
	return m.Called(ctx, ownerID, email, mobile).Error(0)
}

func (m *MockShopFacade) PublishProduct(ctx context.Context, productID uuid.UUID) error {
	return m.Called(ctx, productID).Error(0)
}

// MockInventoryFacade is a mock implementation of InventoryFacade
type MockInventoryFacade struct {
	mock.Mock
}

func (m *MockInventoryFacade) CreatePendingWarehouse(ctx context.Context, userID uuid.UUID, warehouseName, procmanID string) error {
	return m.Called(ctx, userID, warehouseName, procmanID).Error(0)
}

func (m *MockInventoryFacade) ActivatePendingWarehouse(ctx context.Context, warehouseID, userID uuid.UUID) error {
	return m.Called(ctx, warehouseID, userID).Error(0)
}

func (m *MockInventoryFacade) CreateStockItems(ctx context.Context, productID uuid.UUID, warehouseIDs []uuid.UUID, procmanID string) error {
	return m.Called(ctx, productID, warehouseIDs, procmanID).Error(0)
}

// MockCustomerFacade is a mock implementation of CustomerFacade
type MockCustomerFacade struct {
	mock.Mock
}

func (m *MockCustomerFacade) SendStoreRegistrationConfirmationTokenEmail(ctx context.Context, shopName, confirmationToken, ownerEmail string) error {
	return m.Called(ctx, shopName, confirmationToken, ownerEmail).Error(0)
}

func (m *MockCustomerFacade) SendShopCreatedEmail(ctx context.Context, shopID uuid.UUID, shopName, ownerEmail string) error {
	return m.Called(ctx, shopID, shopName, ownerEmail).Error(0)
}

func (m *MockCustomerFacade) SendUserDataChangeConfirmationEmail(ctx context.Context, email, confirmationToken string) error {
	return m.Called(ctx, email, confirmationToken).Error(0)
}

func (m *MockCustomerFacade) SendUserDataChangedEmail(ctx context.Context, email, changeID string) error {
	return m.Called(ctx, email, changeID).Error(0)
}

func (m *MockCustomerFacade) SendPaymentRequestEmail(ctx context.Context, email, listingTitle string, amount decimal.Decimal, currency string, paymentID uuid.UUID) error {
	return m.Called(ctx, email, listingTitle, amount, currency, paymentID).Error(0)
}

func (m *MockCustomerFacade) SendPaymentReceivedEmail(ctx context.Context, email, listingTitle string, paymentID uuid.UUID) error {
	return m.Called(ctx, email, listingTitle, paymentID).Error(0)
}

// MockPaymentFacade is a mock implementation of PaymentFacade
type MockPaymentFacade struct {
	mock.Mock
}

func (m *MockPaymentFacade) StartPayment(ctx context.Context, listingID, buyerID uuid.UUID, amount decimal.Decimal, currency, procmanID string) (uuid.UUID, error) {
	args := m.Called(ctx, listingID, buyerID, amount, currency, procmanID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// MockBiddingFacade is a mock implementation of BiddingFacade
type MockBiddingFacade struct {
	mock.Mock
}

func (m *MockBiddingFacade) CompleteSale(ctx context.Context, listingID, paymentID uuid.UUID) error {
	return m.Called(ctx, listingID, paymentID).Error(0)
}

// MockProcmanRepository is a mock implementation of procman.Repository
type MockProcmanRepository struct {
	mock.Mock
}

func (m *MockProcmanRepository) FindByID(ctx context.Context, id string) (*procman.ProcessManager, bool, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*procman.ProcessManager), args.Bool(1), args.Error(2)
}

func (m *MockProcmanRepository) GetOrCreate(ctx context.Context, id, sagaType string) (*procman.ProcessManager, error) {
	args := m.Called(ctx, id, sagaType)
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case func(context.Context, string, string) *procman.ProcessManager:
		return v(ctx, id, sagaType), args.Error(1)
	default:
		return v.(*procman.ProcessManager), args.Error(1)
	}
}

func (m *MockProcmanRepository) Save(ctx context.Context, pm *procman.ProcessManager, transition *procman.Transition) error {
	return m.Called(ctx, pm, transition).Error(0)
}

func (m *MockProcmanRepository) FindTimedOut(ctx context.Context, now time.Time, limit int) ([]*procman.ProcessManager, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*procman.ProcessManager), args.Error(1)
}

func (m *MockProcmanRepository) History(ctx context.Context, id string) ([]*procman.Transition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*procman.Transition), args.Error(1)
}

func (m *MockProcmanRepository) CountByState(ctx context.Context) ([]procman.StateCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]procman.StateCount), args.Error(1)
}

type testFacades struct {
	identity  *MockIdentityFacade
	shop      *MockShopFacade
	inventory *MockInventoryFacade
	customer  *MockCustomerFacade
	payment   *MockPaymentFacade
	bidding   *MockBiddingFacade
}

func newTestFacades() (Facades, *testFacades) {
	m := &testFacades{
		identity:  new(MockIdentityFacade),
		shop:      new(MockShopFacade),
		inventory: new(MockInventoryFacade),
		customer:  new(MockCustomerFacade),
		payment:   new(MockPaymentFacade),
		bidding:   new(MockBiddingFacade),
	}
	return Facades{
		Identity:  m.identity,
		Shop:      m.shop,
		Inventory: m.inventory,
		Customer:  m.customer,
		Payment:   m.payment,
		Bidding:   m.bidding,
	}, m
}
