package saga

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestQueryService_Get(t *testing.T) {
	repo := new(MockProcmanRepository)
	pm := procman.New("reg-1", SagaTypeShopRegistration)
	pm.State = "PENDING_SHOP_CREATED"
	pm.Data = json.RawMessage(`{"user_id":"u-1"}`)
	pm.ProcessedEvents = []string{"evt_a"}
	pm.Version = 2
	repo.On("FindByID", mock.Anything, "reg-1").Return(pm, true, nil).Once()
	repo.On("FindByID", mock.Anything, "missing").Return(nil, false, nil).Once()

	svc := NewQueryService(repo)

	view, found, err := svc.Get(context.Background(), "reg-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, SagaTypeShopRegistration, view.SagaType)
	assert.Equal(t, "PENDING_SHOP_CREATED", view.State)
	assert.False(t, view.Terminal)
	assert.Equal(t, 2, view.Version)
	assert.JSONEq(t, `{"user_id":"u-1"}`, string(view.Data))

	_, found, err = svc.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQueryService_Get_HidesTokens(t *testing.T) {
	repo := new(MockProcmanRepository)
	pm := procman.New("reg-2", SagaTypeShopRegistration)
	pm.State = StatePendingUserCreated
	pm.Data = json.RawMessage(`{"shop_name":"Acme","confirmation_token":"686ce323","owner_email":"a@x.com"}`)
	repo.On("FindByID", mock.Anything, "reg-2").Return(pm, true, nil).Once()

	view, found, err := NewQueryService(repo).Get(context.Background(), "reg-2")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, string(view.Data), "686ce323")
	assert.NotContains(t, string(view.Data), "confirmation_token")
	assert.JSONEq(t, `{"shop_name":"Acme","owner_email":"a@x.com"}`, string(view.Data))
}

func TestDisplayData(t *testing.T) {
	assert.Empty(t, displayData(nil))
	assert.JSONEq(t, `{"user_id":"u-1"}`, string(displayData(json.RawMessage(`{"user_id":"u-1","token":"t"}`))))
	assert.Equal(t, "null", string(displayData(json.RawMessage(`["confirmation_token"]`))))
	assert.Equal(t, "null", string(displayData(json.RawMessage(`not json`))))
}

func TestQueryService_History(t *testing.T) {
	repo := new(MockProcmanRepository)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.On("History", mock.Anything, "listing-7").Return([]*procman.Transition{
		{ProcmanID: "listing-7", EventID: "evt_1", EventType: "ListingWon", FromState: procman.StateStarted, ToState: "PAYMENT_REQUESTED", OccurredAt: at},
		{ProcmanID: "listing-7", EventID: "evt_2", EventType: "PaymentCaptured", FromState: "PAYMENT_REQUESTED", ToState: procman.StateFinished, OccurredAt: at.Add(time.Minute)},
	}, nil).Once()

	history, err := NewQueryService(repo).History(context.Background(), "listing-7")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, StateProcessStarted, history[0].FromState)
	assert.Equal(t, procman.StateFinished, history[1].ToState)
}

func TestQueryService_Counts(t *testing.T) {
	repo := new(MockProcmanRepository)
	repo.On("CountByState", mock.Anything).Return([]procman.StateCount{
		{SagaType: SagaTypeUpdatingUserData, State: procman.StateStarted, Count: 1},
		{SagaType: SagaTypeUpdatingUserData, State: procman.StateFinished, Count: 4},
	}, nil).Once()

	counts, err := NewQueryService(repo).Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateProcessStarted, counts[0].State)
	assert.Equal(t, int64(4), counts[1].Count)
}

func TestQueryService_Errors(t *testing.T) {
	repo := new(MockProcmanRepository)
	boom := errors.New("db down")
	repo.On("FindByID", mock.Anything, mock.Anything).Return(nil, false, boom)
	repo.On("History", mock.Anything, mock.Anything).Return(nil, boom)
	repo.On("CountByState", mock.Anything).Return(nil, boom)
	svc := NewQueryService(repo)

	_, _, err := svc.Get(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	_, err = svc.History(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	_, err = svc.Counts(context.Background())
	assert.ErrorIs(t, err, boom)
}
