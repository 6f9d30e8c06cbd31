package shop

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShopRegistration(t *testing.T) {
	token, hash, err := shared.NewConfirmationToken()
	require.NoError(t, err)

	r, err := NewShopRegistration(" Acme ", "A@X.com", "+1", token, hash)
	require.NoError(t, err)

	assert.Equal(t, "Acme", r.ShopName)
	assert.Equal(t, "a@x.com", r.OwnerEmail)
	assert.Equal(t, RegistrationStatusAwaitingConfirmation, r.Status)

	evt := r.PendingEvents()[0].(*ShopRegistrationCreatedEvent)
	assert.Equal(t, r.ID.String(), evt.ProcmanID())
	assert.Equal(t, token, evt.ConfirmationToken)
	assert.Equal(t, "Acme", evt.ShopName)

	_, err = NewShopRegistration("", "a@x.com", "", token, hash)
	assert.Error(t, err)
	_, err = NewShopRegistration("Acme", "", "", token, hash)
	assert.Error(t, err)
}

func TestShopRegistration_Confirm(t *testing.T) {
	token, hash, err := shared.NewConfirmationToken()
	require.NoError(t, err)
	r, err := NewShopRegistration("Acme", "a@x.com", "+1", token, hash)
	require.NoError(t, err)
	r.PullDomainEvents()

	_, err = r.Confirm("tok1")
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
	assert.Empty(t, r.PendingEvents())

	ok, err := r.Confirm(token)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, r.PendingEvents(), 1)
	assert.Equal(t, EventTypeShopRegistrationConfirmed, r.PendingEvents()[0].EventType())

	ok, err = r.Confirm(token)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, r.PendingEvents(), 1)
}

func TestShop_Lifecycle(t *testing.T) {
	owner := uuid.New()
	s, err := NewPendingShop(owner, "Acme", "a@x.com", "R1")
	require.NoError(t, err)

	evt := s.PendingEvents()[0].(*PendingShopCreatedEvent)
	assert.Equal(t, s.ID, evt.ShopID)
	assert.Equal(t, owner, evt.OwnerID)
	assert.Equal(t, "R1", evt.ProcmanID())

	w := uuid.New()
	assert.True(t, s.AttachWarehouse(w))
	assert.False(t, s.AttachWarehouse(w))
	assert.Equal(t, []uuid.UUID{w}, s.WarehouseIDs)

	assert.True(t, s.Activate())
	assert.False(t, s.Activate())

	assert.True(t, s.UpdateContact("B@x.com", "+2"))
	assert.False(t, s.UpdateContact("b@x.com", "+2"))

	_, err = NewPendingShop(uuid.Nil, "Acme", "", "")
	assert.Error(t, err)
}
