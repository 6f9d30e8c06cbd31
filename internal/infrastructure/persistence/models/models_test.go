package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserModel_PendingChangeRoundTrip(t *testing.T) {
	user, err := identity.NewPendingUser(uuid.New(), "a@x.com", "+1", "")
	require.NoError(t, err)
	user.Activate()
	require.NoError(t, user.RequestDataChange("b@x.com", "+2", "tok", "hash", "pm-1"))

	var m UserModel
	m.FromDomain(user)
	restored := m.ToDomain()

	require.NotNil(t, restored.PendingChange)
	assert.Equal(t, "b@x.com", restored.PendingChange.Email)
	assert.Equal(t, "pm-1", restored.PendingChange.ProcmanID)
	assert.Empty(t, restored.PendingEvents(), "loaded aggregates carry no pending events")

	user.PendingChange = nil
	m.FromDomain(user)
	assert.Nil(t, m.PendingRequestedAt)
	assert.Nil(t, m.ToDomain().PendingChange)
}

func TestProcessManagerModel_Mapping(t *testing.T) {
	deadline := time.Now().Add(time.Hour).UTC()
	pm := procman.New("R1", "shop_registration")
	pm.State = "PENDING_USER_CREATED"
	pm.TimeoutAt = &deadline
	pm.Data = json.RawMessage(`{"shop_name":"Acme"}`)
	pm.MarkProcessed("evt_1")
	pm.Version = 3

	var m ProcessManagerModel
	require.NoError(t, m.FromDomain(pm))
	assert.JSONEq(t, `["evt_1"]`, string(m.ProcessedEvents))

	restored, err := m.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, pm.State, restored.State)
	assert.Equal(t, 3, restored.Version)
	assert.True(t, restored.HasProcessed("evt_1"))
	assert.JSONEq(t, `{"shop_name":"Acme"}`, string(restored.Data))

	m.ProcessedEvents = []byte("not json")
	_, err = m.ToDomain()
	assert.Error(t, err)
}

func TestOutboxEntryModel_Mapping(t *testing.T) {
	evt := shared.NewBaseDomainEvent("PendingShopCreated", "Shop", uuid.New(), "R1")
	entry := shared.NewOutboxEntry(&evt, []byte(`{}`))

	m := OutboxEntryModelFromDomain(entry)
	assert.Equal(t, "outbox_events", m.TableName())
	assert.Equal(t, entry, m.ToDomain())
}
