package saga

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/bidding"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/inventory"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/domain/shop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterData struct {
	Count int `json:"count"`
}

func newCounterDefinition() *Definition[counterData] {
	def := NewDefinition[counterData]("Counter")
	On(def, shop.EventTypePendingShopCreated, procman.StateStarted,
		func(_ context.Context, e *shop.PendingShopCreatedEvent, inst *Instance[counterData]) error {
			inst.Data.Count++
			inst.State = "COUNTING"
			return nil
		})
	return def
}

func TestDefinition_Handle(t *testing.T) {
	def := newCounterDefinition()
	inst := NewInstance("pm-1", procman.StateStarted, counterData{}, testNow)

	require.NoError(t, def.Handle(context.Background(), pendingShopCreated(uuid.New()), inst))
	assert.Equal(t, "COUNTING", inst.State)
	assert.Equal(t, 1, inst.Data.Count)
}

func TestDefinition_UnhandledEvent(t *testing.T) {
	def := newCounterDefinition()
	inst := NewInstance("pm-1", procman.StateStarted, counterData{}, testNow)

	won := &bidding.ListingWonEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(bidding.EventTypeListingWon, bidding.AggregateTypeListing, uuid.New(), "pm-1"),
	}
	err := def.Handle(context.Background(), won, inst)
	assert.ErrorIs(t, err, ErrUnhandledEvent)
	assert.Equal(t, procman.StateStarted, inst.State)
}

func TestDefinition_PayloadMismatch(t *testing.T) {
	def := newCounterDefinition()
	inst := NewInstance("pm-1", procman.StateStarted, counterData{}, testNow)

	base := shared.NewBaseDomainEvent(shop.EventTypePendingShopCreated, shop.AggregateTypeShop, uuid.New(), "pm-1")
	err := def.Handle(context.Background(), &base, inst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected payload")
	assert.Equal(t, 0, inst.Data.Count)
}

func TestDefinition_DuplicateBindingPanics(t *testing.T) {
	def := newCounterDefinition()
	assert.Panics(t, func() {
		On(def, shop.EventTypePendingShopCreated, "COUNTING",
			func(context.Context, *shop.PendingShopCreatedEvent, *Instance[counterData]) error { return nil })
	})
}

func TestDefinition_EventTypes(t *testing.T) {
	f, _ := newTestFacades()

	assert.Equal(t, []string{
		shop.EventTypePendingShopCreated,
		identity.EventTypePendingUserCreated,
		inventory.EventTypePendingWarehouseCreated,
		shop.EventTypeShopRegistrationConfirmed,
		shop.EventTypeShopRegistrationCreated,
	}, NewShopRegistrationSaga(f).EventTypes())

	assert.Equal(t, []string{
		identity.EventTypeUserDataChangeConfirmed,
		identity.EventTypeUserDataChangeRequested,
	}, NewUpdatingUserDataSaga(f).EventTypes())
}

func TestDefinition_Timeout(t *testing.T) {
	def := newCounterDefinition()

	for _, state := range []string{procman.StateStarted, "COUNTING"} {
		inst := NewInstance("pm-1", state, counterData{}, testNow)
		inst.SetDeadline(time.Hour)
		require.NoError(t, def.Timeout(inst))
		assert.Equal(t, procman.StateTimedOut, inst.State)
		assert.Nil(t, inst.TimeoutAt)
	}

	for _, state := range []string{procman.StateFinished, procman.StateTimedOut} {
		inst := NewInstance("pm-1", state, counterData{}, testNow)
		assert.ErrorIs(t, def.Timeout(inst), ErrAlreadyTerminal)
		assert.Equal(t, state, inst.State)
	}
}

func TestInstance_SetDeadline(t *testing.T) {
	inst := NewInstance("pm-1", procman.StateStarted, counterData{}, testNow)
	inst.SetDeadline(24 * time.Hour)

	require.NotNil(t, inst.TimeoutAt)
	assert.Equal(t, testNow.Add(24*time.Hour), *inst.TimeoutAt)
	assert.Equal(t, testNow, inst.Now())
}
