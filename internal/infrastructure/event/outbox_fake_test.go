package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
)

// memoryOutboxRepository is an in-memory shared.OutboxRepository for tests
type memoryOutboxRepository struct {
	mu            sync.Mutex
	entries       map[uuid.UUID]*shared.OutboxEntry
	markSentCalls [][]uuid.UUID
	markSentErr   error
}

func newMemoryOutboxRepository() *memoryOutboxRepository {
	return &memoryOutboxRepository{
		entries: make(map[uuid.UUID]*shared.OutboxEntry),
	}
}

func (r *memoryOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *memoryOutboxRepository) sorted(match func(*shared.OutboxEntry) bool, limit int) []*shared.OutboxEntry {
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if match(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (r *memoryOutboxRepository) FindPending(ctx context.Context, createdBefore time.Time, limit int) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(e *shared.OutboxEntry) bool {
		return e.Status == shared.OutboxStatusPending && !e.CreatedAt.After(createdBefore)
	}, limit), nil
}

func (r *memoryOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(e *shared.OutboxEntry) bool {
		return e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && !e.NextRetryAt.After(before)
	}, limit), nil
}

func (r *memoryOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.entries[id]; ok && e.MarkProcessing() == nil {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *memoryOutboxRepository) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markSentCalls = append(r.markSentCalls, ids)
	if r.markSentErr != nil {
		return r.markSentErr
	}
	for _, id := range ids {
		if e, ok := r.entries[id]; ok && (e.Status == shared.OutboxStatusPending || e.Status == shared.OutboxStatusProcessing) {
			e.MarkSent()
		}
	}
	return nil
}

func (r *memoryOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *memoryOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, e := range r.entries {
		if e.Status == shared.OutboxStatusSent && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dead := r.sorted(func(e *shared.OutboxEntry) bool { return e.IsDead() }, len(r.entries))
	return dead, int64(len(dead)), nil
}

func (r *memoryOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *memoryOutboxRepository) status(id uuid.UUID) shared.OutboxStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id].Status
}

var _ shared.OutboxRepository = (*memoryOutboxRepository)(nil)
