package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func overdue(t *testing.T, id, sagaType string) *procman.ProcessManager {
	t.Helper()
	past := testNow.Add(-time.Hour)
	pm := storedRegistration(t, StatePendingUserCreated, registrationData(), 1)
	pm.ID = id
	pm.SagaType = sagaType
	pm.TimeoutAt = &past
	return pm
}

func byID(id string) any {
	return mock.MatchedBy(func(pm *procman.ProcessManager) bool { return pm.ID == id })
}

func TestTimeoutService_Sweep(t *testing.T) {
	f, _ := newTestFacades()
	repo := new(MockProcmanRepository)
	svc := NewTimeoutService(repo, []Handler{newTestHandler(f, repo)}, 10, zap.NewNop())

	timedOut := overdue(t, "pm-a", SagaTypeShopRegistration)
	raced := overdue(t, "pm-b", SagaTypeShopRegistration)
	unknown := overdue(t, "pm-c", "Retired")

	repo.On("FindTimedOut", mock.Anything, testNow, 10).
		Return([]*procman.ProcessManager{timedOut, raced, unknown}, nil).Once()
	repo.On("Save", mock.Anything, byID("pm-a"), mock.Anything).Return(nil).Once()
	repo.On("Save", mock.Anything, byID("pm-b"), mock.Anything).Return(shared.ErrConcurrencyConflict).Once()

	n, err := svc.Sweep(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, procman.StateTimedOut, timedOut.State)
	repo.AssertNotCalled(t, "Save", mock.Anything, byID("pm-c"), mock.Anything)
}

func TestTimeoutService_CollectsFailures(t *testing.T) {
	f, _ := newTestFacades()
	repo := new(MockProcmanRepository)
	svc := NewTimeoutService(repo, []Handler{newTestHandler(f, repo)}, 0, zap.NewNop())
	boom := errors.New("disk full")

	repo.On("FindTimedOut", mock.Anything, testNow, 100).
		Return([]*procman.ProcessManager{
			overdue(t, "pm-a", SagaTypeShopRegistration),
			overdue(t, "pm-b", SagaTypeShopRegistration),
		}, nil).Once()
	repo.On("Save", mock.Anything, byID("pm-a"), mock.Anything).Return(boom).Once()
	repo.On("Save", mock.Anything, byID("pm-b"), mock.Anything).Return(nil).Once()

	n, err := svc.Sweep(context.Background(), testNow)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n, "one failure does not stop the batch")
}

func TestTimeoutService_FindFails(t *testing.T) {
	repo := new(MockProcmanRepository)
	svc := NewTimeoutService(repo, nil, 5, zap.NewNop())
	boom := errors.New("timeout")
	repo.On("FindTimedOut", mock.Anything, testNow, 5).Return(nil, boom)

	n, err := svc.Sweep(context.Background(), testNow)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}
