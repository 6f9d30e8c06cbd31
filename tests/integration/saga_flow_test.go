package integration

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	customerapp "github.com/shopkit/backend/internal/application/customer"
	identityapp "github.com/shopkit/backend/internal/application/identity"
	inventoryapp "github.com/shopkit/backend/internal/application/inventory"
	"github.com/shopkit/backend/internal/application/saga"
	shopapp "github.com/shopkit/backend/internal/application/shop"
	"github.com/shopkit/backend/internal/domain/customer"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/domain/shop"
	"github.com/shopkit/backend/internal/infrastructure/event"
	"github.com/shopkit/backend/internal/infrastructure/persistence"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"github.com/shopkit/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var mailedToken = regexp.MustCompile(`(?m)^    (\S+)$`)

type mailbox struct {
	mu   sync.Mutex
	sent []customer.Message
}

func (m *mailbox) Send(_ context.Context, msg customer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mailbox) token(t *testing.T, recipient string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To != recipient {
			continue
		}
		if match := mailedToken.FindStringSubmatch(m.sent[i].Body); match != nil {
			return match[1]
		}
	}
	t.Fatalf("no token mailed to %s", recipient)
	return ""
}

type stack struct {
	testDB   *TestDB
	procmans *persistence.GormProcessManagerRepository
	outbox   *event.GormOutboxRepository
	shop     *shopapp.Facade
	identity *identityapp.Facade
	mail     *mailbox
	observed *testutil.Recorder
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zap.NewNop()
	testDB := NewSharedTestDB(t)
	testDB.CleanTables()

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	runner := event.QueueRunner{}
	bus := event.NewInMemoryEventBus(logger, event.WithRunner(runner))
	outbox := event.NewGormOutboxRepository(testDB.DB)
	dispatcher := event.NewCommittedEventDispatcher(bus, runner, outbox, logger)
	uow := persistence.NewGormUnitOfWork(testDB.DB, event.NewOutboxPublisher(serializer), dispatcher, logger)

	renderer, err := customerapp.NewRenderer()
	require.NoError(t, err)

	s := &stack{
		testDB:   testDB,
		procmans: persistence.NewGormProcessManagerRepository(testDB.DB),
		outbox:   outbox,
		shop:     shopapp.NewFacade(uow, logger),
		identity: identityapp.NewFacade(uow, logger),
		mail:     &mailbox{},
		observed: testutil.NewRecorder(),
	}
	module := saga.NewModule(saga.Facades{
		Identity:  s.identity,
		Shop:      s.shop,
		Inventory: inventoryapp.NewFacade(uow, logger),
		Customer:  customerapp.NewFacade(uow, s.mail, renderer, "noreply@shopkit.test", logger),
	}, s.procmans, saga.Config{
		Handler: saga.HandlerConfig{MaxRetries: 3, RetryBackoff: time.Millisecond},
	}, logger)
	module.Bind(bus)
	bus.SubscribeAll(s.observed)
	return s
}

func TestShopRegistration_Postgres(t *testing.T) {
	skipShort(t)

	s := newStack(t)
	ctx := testutil.ContextWithTimeout(t, time.Minute)

	regID, err := s.shop.RegisterShop(ctx, "Corner Books", "owner@corner.test", "+15550100")
	require.NoError(t, err)

	pm, found, err := s.procmans.FindByID(ctx, regID.String())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, saga.StateWaitingForConfirmation, pm.State)

	require.NoError(t, s.shop.ConfirmShopRegistration(ctx, regID, s.mail.token(t, "owner@corner.test")))

	pm, _, err = s.procmans.FindByID(ctx, regID.String())
	require.NoError(t, err)
	assert.Equal(t, procman.StateFinished, pm.State)
	assert.Nil(t, pm.TimeoutAt)

	history, err := s.procmans.History(ctx, regID.String())
	require.NoError(t, err)
	assert.Len(t, history, 5)

	var owner models.UserModel
	require.NoError(t, s.testDB.DB.First(&owner).Error)
	view, found, err := s.shop.FindShopByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, string(shop.ShopStatusActive), view.Status)
	require.Len(t, view.WarehouseIDs, 1)

	t.Run("new product is stocked in every warehouse", func(t *testing.T) {
		productID, err := s.shop.CreateProduct(ctx, view.ID, "Field guide", "guide-1", decimal.RequireFromString("24.50"))
		require.NoError(t, err)

		product, found, err := s.shop.FindProduct(ctx, productID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "published", product.Status)

		var stock int64
		require.NoError(t, s.testDB.DB.Model(&models.StockItemModel{}).Where("product_id = ?", productID).Count(&stock).Error)
		assert.Equal(t, int64(1), stock)
	})

	counts, err := s.outbox.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[shared.OutboxStatusPending], "every committed event is acknowledged")
	assert.Positive(t, counts[shared.OutboxStatusSent])
	assert.Contains(t, s.observed.Types(), shop.EventTypePendingShopCreated)
}
