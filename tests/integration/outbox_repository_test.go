package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/event"
	"github.com/shopkit/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveOutboxEntries(t *testing.T, repo *event.GormOutboxRepository, n int) []*shared.OutboxEntry {
	t.Helper()
	entries := make([]*shared.OutboxEntry, n)
	for i := range entries {
		entries[i] = shared.NewOutboxEntry(testutil.NewTestEvent("ShopRegistrationCreated", "pm-outbox"), []byte(`{}`))
	}
	require.NoError(t, repo.Save(context.Background(), entries...))
	return entries
}

func TestOutboxRepository_Postgres(t *testing.T) {
	skipShort(t)

	testDB := NewSharedTestDB(t)
	repo := event.NewGormOutboxRepository(testDB.DB)
	ctx := context.Background()

	t.Run("duplicate event id is rejected", func(t *testing.T) {
		testDB.CleanTables()
		entry := saveOutboxEntries(t, repo, 1)[0]

		dup := *entry
		dup.ID = uuid.New()
		assert.Error(t, repo.Save(ctx, &dup))
	})

	t.Run("concurrent relays claim each entry once", func(t *testing.T) {
		testDB.CleanTables()
		entries := saveOutboxEntries(t, repo, 20)
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}

		const relays = 4
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			claimed = make(map[uuid.UUID]int)
		)
		for range relays {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := repo.MarkProcessing(ctx, ids)
				assert.NoError(t, err)
				mu.Lock()
				defer mu.Unlock()
				for _, e := range got {
					claimed[e.ID]++
				}
			}()
		}
		wg.Wait()

		assert.Len(t, claimed, len(entries))
		for id, n := range claimed {
			assert.Equal(t, 1, n, "entry %s claimed more than once", id)
		}

		require.NoError(t, repo.MarkSent(ctx, ids))
		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(20), counts[shared.OutboxStatusSent])
	})

	t.Run("failed entries become retryable then dead", func(t *testing.T) {
		testDB.CleanTables()
		entry := saveOutboxEntries(t, repo, 1)[0]
		entry.MaxRetries = 2

		entry.MarkFailed(errors.New("broker down"), time.Now())
		require.NoError(t, repo.Update(ctx, entry))

		retryable, err := repo.FindRetryable(ctx, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, retryable, 1)
		assert.Equal(t, "broker down", retryable[0].LastError)

		entry.MarkFailed(errors.New("broker still down"), time.Now())
		require.NoError(t, repo.Update(ctx, entry))

		dead, total, err := repo.FindDead(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, dead, 1)
		assert.True(t, dead[0].IsDead())

		require.NoError(t, dead[0].ResetForRetry())
		require.NoError(t, repo.Update(ctx, dead[0]))
		stored, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, shared.OutboxStatusPending, stored.Status)
		assert.Zero(t, stored.RetryCount)
	})

	t.Run("cleanup deletes only old sent entries", func(t *testing.T) {
		testDB.CleanTables()
		entries := saveOutboxEntries(t, repo, 3)
		require.NoError(t, repo.MarkSent(ctx, []uuid.UUID{entries[0].ID, entries[1].ID}))

		deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		_, err = repo.FindByID(ctx, entries[2].ID)
		assert.NoError(t, err)
		_, err = repo.FindByID(ctx, entries[0].ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
