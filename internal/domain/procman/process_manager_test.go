package procman

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProcessManager_New(t *testing.T) {
	pm := New("R1", "shop_registration")

	assert.True(t, pm.IsNew())
	assert.Equal(t, StateStarted, pm.State)
	assert.JSONEq(t, `{}`, string(pm.Data))
	assert.False(t, pm.IsTerminal())
}

func TestProcessManager_ProcessedEvents(t *testing.T) {
	pm := New("R1", "shop_registration")

	pm.MarkProcessed("evt_1")
	pm.MarkProcessed("evt_1")
	pm.MarkProcessed("")

	assert.True(t, pm.HasProcessed("evt_1"))
	assert.False(t, pm.HasProcessed("evt_2"))
	assert.Equal(t, []string{"evt_1"}, pm.ProcessedEvents)
}

func TestProcessManager_IsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	pm := New("R1", "shop_registration")
	assert.False(t, pm.IsOverdue(now), "no deadline")

	pm.TimeoutAt = &future
	assert.False(t, pm.IsOverdue(now))

	pm.TimeoutAt = &past
	assert.True(t, pm.IsOverdue(now))

	pm.State = StateFinished
	assert.False(t, pm.IsOverdue(now), "terminal sagas never time out")
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StateFinished))
	assert.True(t, IsTerminal(StateTimedOut))
	assert.False(t, IsTerminal(StateStarted))
	assert.False(t, IsTerminal("PENDING_USER_CREATED"))
}

func TestNewTransition(t *testing.T) {
	pm := New("R1", "shop_registration")
	pm.State = "PENDING_USER_CREATED"

	tr := NewTransition(pm, "evt_1", "ShopRegistrationCreated", StateStarted)

	assert.Equal(t, "R1", tr.ProcmanID)
	assert.Equal(t, "shop_registration", tr.SagaType)
	assert.Equal(t, StateStarted, tr.FromState)
	assert.Equal(t, "PENDING_USER_CREATED", tr.ToState)
}
