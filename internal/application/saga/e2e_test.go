package saga_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	customerapp "github.com/shopkit/backend/internal/application/customer"
	identityapp "github.com/shopkit/backend/internal/application/identity"
	inventoryapp "github.com/shopkit/backend/internal/application/inventory"
	"github.com/shopkit/backend/internal/application/saga"
	shopapp "github.com/shopkit/backend/internal/application/shop"
	"github.com/shopkit/backend/internal/domain/customer"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/domain/shop"
	"github.com/shopkit/backend/internal/infrastructure/config"
	"github.com/shopkit/backend/internal/infrastructure/event"
	"github.com/shopkit/backend/internal/infrastructure/persistence"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tokenLine = regexp.MustCompile(`(?m)^    (\S+)$`)

type recordingTransport struct {
	mu   sync.Mutex
	sent []customer.Message
}

func (r *recordingTransport) Send(_ context.Context, msg customer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingTransport) messages() []customer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]customer.Message(nil), r.sent...)
}

// lastToken extracts the token of the last mail sent to recipient
func (r *recordingTransport) lastToken(t *testing.T, recipient string) string {
	t.Helper()
	msgs := r.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].To != recipient {
			continue
		}
		if m := tokenLine.FindStringSubmatch(msgs[i].Body); m != nil {
			return m[1]
		}
	}
	t.Fatalf("no token mailed to %s", recipient)
	return ""
}

// warehouseFirst creates the warehouse before the shop so the join sees its
// halves in reverse order. The saga's own warehouse call then replays.
type warehouseFirst struct {
	saga.ShopFacade
	inventory saga.InventoryFacade
}

func (w warehouseFirst) CreatePendingShop(ctx context.Context, userID uuid.UUID, name, ownerEmail, procmanID string) error {
	if err := w.inventory.CreatePendingWarehouse(ctx, userID, name, procmanID); err != nil {
		return err
	}
	return w.ShopFacade.CreatePendingShop(ctx, userID, name, ownerEmail, procmanID)
}

type harness struct {
	db        *gorm.DB
	procmans  *persistence.GormProcessManagerRepository
	outbox    *event.GormOutboxRepository
	identity  *identityapp.Facade
	shop      *shopapp.Facade
	inventory *inventoryapp.Facade
	mail      *recordingTransport
	module    *saga.Module
}

func newHarness(t *testing.T, wrap func(saga.Facades) saga.Facades) *harness {
	t.Helper()
	logger := zap.NewNop()

	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() { _ = database.Close() })

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	runner := event.QueueRunner{}
	bus := event.NewInMemoryEventBus(logger, event.WithRunner(runner))
	outbox := event.NewGormOutboxRepository(database.DB)
	dispatcher := event.NewCommittedEventDispatcher(bus, runner, outbox, logger)
	u := persistence.NewGormUnitOfWork(database.DB, event.NewOutboxPublisher(serializer), dispatcher, logger)

	renderer, err := customerapp.NewRenderer()
	require.NoError(t, err)
	mail := &recordingTransport{}

	h := &harness{
		db:        database.DB,
		procmans:  persistence.NewGormProcessManagerRepository(database.DB),
		outbox:    outbox,
		identity:  identityapp.NewFacade(u, logger),
		shop:      shopapp.NewFacade(u, logger),
		inventory: inventoryapp.NewFacade(u, logger),
		mail:      mail,
	}
	facades := saga.Facades{
		Identity:  h.identity,
		Shop:      h.shop,
		Inventory: h.inventory,
		Customer:  customerapp.NewFacade(u, mail, renderer, "noreply@shopkit.test", logger),
	}
	if wrap != nil {
		facades = wrap(facades)
	}

	h.module = saga.NewModule(facades, h.procmans, saga.Config{
		Handler: saga.HandlerConfig{MaxRetries: 3, RetryBackoff: time.Millisecond},
	}, logger)
	h.module.Bind(bus)
	return h
}

func (h *harness) procman(t *testing.T, id string) *procman.ProcessManager {
	t.Helper()
	pm, found, err := h.procmans.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found, "process manager %s", id)
	return pm
}

func (h *harness) assertOutboxDrained(t *testing.T) {
	t.Helper()
	counts, err := h.outbox.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts[shared.OutboxStatusPending], "every committed event is acknowledged")
	assert.Positive(t, counts[shared.OutboxStatusSent])
}

func TestShopRegistration_EndToEnd(t *testing.T) {
	orders := map[string]struct {
		wrap      func(saga.Facades) saga.Facades
		joinFirst string
	}{
		"shop first": {
			joinFirst: shop.EventTypePendingShopCreated,
		},
		"warehouse first": {
			wrap: func(f saga.Facades) saga.Facades {
				f.Shop = warehouseFirst{ShopFacade: f.Shop, inventory: f.Inventory}
				return f
			},
			joinFirst: inventory.EventTypePendingWarehouseCreated,
		},
	}

	for name, tc := range orders {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, tc.wrap)

			regID, err := h.shop.RegisterShop(ctx, "Acme", "owner@acme.test", "+15550100")
			require.NoError(t, err)

			pm := h.procman(t, regID.String())
			assert.Equal(t, saga.SagaTypeShopRegistration, pm.SagaType)
			assert.Equal(t, saga.StateWaitingForConfirmation, pm.State)
			require.NotNil(t, pm.TimeoutAt)

			require.Len(t, h.mail.messages(), 1)
			token := h.mail.lastToken(t, "owner@acme.test")
			assert.NotContains(t, string(pm.Data), token, "stored saga data keeps no plaintext token")
			pmView, _, err := saga.NewQueryService(h.procmans).Get(ctx, regID.String())
			require.NoError(t, err)
			assert.NotContains(t, string(pmView.Data), token)
			require.NoError(t, h.shop.ConfirmShopRegistration(ctx, regID, token))

			pm = h.procman(t, regID.String())
			assert.Equal(t, procman.StateFinished, pm.State)
			assert.Nil(t, pm.TimeoutAt)

			history, err := h.procmans.History(ctx, regID.String())
			require.NoError(t, err)
			require.Len(t, history, 5)
			toStates := make([]string, len(history))
			for i, tr := range history {
				toStates[i] = tr.ToState
			}
			assert.Equal(t, []string{
				saga.StatePendingUserCreated,
				saga.StatePendingShopCreated,
				saga.StatePendingShopCreated,
				saga.StateWaitingForConfirmation,
				procman.StateFinished,
			}, toStates)
			assert.Equal(t, tc.joinFirst, history[2].EventType)

			var users []models.UserModel
			require.NoError(t, h.db.Find(&users).Error)
			require.Len(t, users, 1)
			assert.Equal(t, identity.UserStatusActive, users[0].Status)

			view, found, err := h.shop.FindShopByOwner(ctx, users[0].ID)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, string(shop.ShopStatusActive), view.Status)
			require.Len(t, view.WarehouseIDs, 1)

			var warehouses []models.WarehouseModel
			require.NoError(t, h.db.Find(&warehouses).Error)
			require.Len(t, warehouses, 1, "the replayed warehouse call must not create a second one")
			assert.Equal(t, inventory.WarehouseStatusActive, warehouses[0].Status)
			assert.Equal(t, view.WarehouseIDs[0], warehouses[0].ID)

			msgs := h.mail.messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, "Acme is open", msgs[1].Subject)

			// confirming again is a no-op for the facade and emits nothing new
			require.NoError(t, h.shop.ConfirmShopRegistration(ctx, regID, token))
			history, err = h.procmans.History(ctx, regID.String())
			require.NoError(t, err)
			assert.Len(t, history, 5)

			h.assertOutboxDrained(t)
		})
	}
}

func TestNewProductAndContactChange_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	regID, err := h.shop.RegisterShop(ctx, "Acme", "owner@acme.test", "+15550100")
	require.NoError(t, err)
	require.NoError(t, h.shop.ConfirmShopRegistration(ctx, regID, h.mail.lastToken(t, "owner@acme.test")))

	var owner models.UserModel
	require.NoError(t, h.db.First(&owner).Error)
	view, found, err := h.shop.FindShopByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.True(t, found)

	t.Run("product is stocked and published", func(t *testing.T) {
		productID, err := h.shop.CreateProduct(ctx, view.ID, "Desk lamp", "lamp-1", decimal.RequireFromString("19.90"))
		require.NoError(t, err)

		product, found, err := h.shop.FindProduct(ctx, productID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "published", product.Status)

		var stock int64
		require.NoError(t, h.db.Model(&models.StockItemModel{}).Where("product_id = ?", productID).Count(&stock).Error)
		assert.Equal(t, int64(len(view.WarehouseIDs)), stock)

		// same sku returns the existing product without a new workflow
		again, err := h.shop.CreateProduct(ctx, view.ID, "Desk lamp", " LAMP-1 ", decimal.RequireFromString("19.90"))
		require.NoError(t, err)
		assert.Equal(t, productID, again)
	})

	t.Run("contact change reaches the shop", func(t *testing.T) {
		procmanID, err := h.identity.RequestUserDataChange(ctx, owner.ID, "new@acme.test", "+15550199")
		require.NoError(t, err)
		assert.Equal(t, saga.StateWaitingForConfirmation, h.procman(t, procmanID).State)

		token := h.mail.lastToken(t, "new@acme.test")
		require.NoError(t, h.identity.ConfirmUserDataChange(ctx, owner.ID, token))
		assert.Equal(t, procman.StateFinished, h.procman(t, procmanID).State)

		user, found, err := h.identity.FindUser(ctx, owner.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "new@acme.test", user.Email)

		updated, _, err := h.shop.FindShopByOwner(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "new@acme.test", updated.ContactEmail)
		assert.Equal(t, "+15550199", updated.ContactPhone)
	})

	h.assertOutboxDrained(t)
}

func TestTimeoutSweep_EndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	regID, err := h.shop.RegisterShop(ctx, "Slowpoke", "slow@x.test", "")
	require.NoError(t, err)

	later := time.Now().Add(saga.ShopRegistrationTimeout + time.Minute)
	n, err := h.module.Timeouts.Sweep(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, procman.StateTimedOut, h.procman(t, regID.String()).State)

	// a late confirmation commits but its saga transition fails loudly and
	// the event stays in the outbox
	err = h.shop.ConfirmShopRegistration(ctx, regID, h.mail.lastToken(t, "slow@x.test"))
	assert.ErrorIs(t, err, saga.ErrPreconditionFailed)
	counts, err := h.outbox.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusPending])

	n, err = h.module.Timeouts.Sweep(ctx, later)
	require.NoError(t, err)
	assert.Zero(t, n)
}
