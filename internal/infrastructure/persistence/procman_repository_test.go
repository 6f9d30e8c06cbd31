package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcmanRepository(t *testing.T) *GormProcessManagerRepository {
	return NewGormProcessManagerRepository(newSQLiteDatabase(t).DB)
}

func TestGormProcessManagerRepository_GetOrCreate(t *testing.T) {
	repo := newProcmanRepository(t)
	ctx := context.Background()

	t.Run("returns a fresh record when missing", func(t *testing.T) {
		pm, err := repo.GetOrCreate(ctx, "pm-new", "ShopRegistration")
		require.NoError(t, err)
		assert.True(t, pm.IsNew())
		assert.Equal(t, procman.StateStarted, pm.State)

		_, found, err := repo.FindByID(ctx, "pm-new")
		require.NoError(t, err)
		assert.False(t, found, "GetOrCreate must not persist")
	})

	t.Run("rejects a record of another saga", func(t *testing.T) {
		pm := procman.New("pm-typed", "ShopRegistration")
		require.NoError(t, repo.Save(ctx, pm, nil))

		_, err := repo.GetOrCreate(ctx, "pm-typed", "PayingForWonItem")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestGormProcessManagerRepository_SaveCompareAndSwap(t *testing.T) {
	repo := newProcmanRepository(t)
	ctx := context.Background()

	pm := procman.New("pm-1", "ShopRegistration")
	pm.State = "PENDING_USER_CREATED"
	pm.Data = json.RawMessage(`{"registration_id":"r1"}`)
	pm.MarkProcessed("evt_1")
	require.NoError(t, repo.Save(ctx, pm, procman.NewTransition(pm, "evt_1", "ShopRegistrationCreated", procman.StateStarted)))
	assert.Equal(t, 1, pm.Version)

	// two readers of version 1
	a, found, err := repo.FindByID(ctx, "pm-1")
	require.NoError(t, err)
	require.True(t, found)
	b, _, err := repo.FindByID(ctx, "pm-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"registration_id":"r1"}`, string(a.Data))
	assert.Equal(t, []string{"evt_1"}, a.ProcessedEvents)

	a.State = "WAITING_FOR_CONFIRMATION"
	require.NoError(t, repo.Save(ctx, a, nil))
	assert.Equal(t, 2, a.Version)

	b.State = "PENDING_SHOP_CREATED"
	err = repo.Save(ctx, b, procman.NewTransition(b, "evt_2", "PendingUserCreated", "PENDING_USER_CREATED"))
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 1, b.Version, "failed save must not bump the version")

	stored, _, err := repo.FindByID(ctx, "pm-1")
	require.NoError(t, err)
	assert.Equal(t, "WAITING_FOR_CONFIRMATION", stored.State)
	assert.Equal(t, 2, stored.Version)

	history, err := repo.History(ctx, "pm-1")
	require.NoError(t, err)
	require.Len(t, history, 1, "losing save must not leave a transition behind")
	assert.Equal(t, "evt_1", history[0].EventID)
	assert.Equal(t, "PENDING_USER_CREATED", history[0].ToState)
}

func TestGormProcessManagerRepository_ConcurrentInsertConflicts(t *testing.T) {
	repo := newProcmanRepository(t)
	ctx := context.Background()

	first := procman.New("pm-race", "UpdatingUserData")
	second := procman.New("pm-race", "UpdatingUserData")
	require.NoError(t, repo.Save(ctx, first, nil))

	err := repo.Save(ctx, second, nil)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.True(t, second.IsNew())
}

func TestGormProcessManagerRepository_FindTimedOut(t *testing.T) {
	repo := newProcmanRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	save := func(id, state string, deadline *time.Time) {
		pm := procman.New(id, "ShopCreatingNewProduct")
		pm.State = state
		pm.TimeoutAt = deadline
		require.NoError(t, repo.Save(ctx, pm, nil))
	}
	save("overdue", "PENDING_STOCK_ITEMS", &past)
	save("running", "PENDING_STOCK_ITEMS", &future)
	save("finished", procman.StateFinished, &past)
	save("timed-out", procman.StateTimedOut, &past)
	save("no-deadline", "PENDING_STOCK_ITEMS", nil)

	result, err := repo.FindTimedOut(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "overdue", result[0].ID)

	counts, err := repo.CountByState(ctx)
	require.NoError(t, err)
	total := int64(0)
	for _, c := range counts {
		assert.Equal(t, "ShopCreatingNewProduct", c.SagaType)
		total += c.Count
	}
	assert.Equal(t, int64(5), total)
}

func TestGormProcessManagerRepository_UpdateSQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormProcessManagerRepository(db.DB)

	pm := procman.New("pm-sql", "ShopRegistration")
	pm.Version = 3
	pm.State = "WAITING_FOR_CONFIRMATION"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "process_managers" SET .* WHERE id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), pm, nil)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 3, pm.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
