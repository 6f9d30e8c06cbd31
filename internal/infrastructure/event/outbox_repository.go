package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository stores outbox rows in outbox_events
type GormOutboxRepository struct {
	db *gorm.DB
}

func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// WithTx binds a copy of the repository to tx
func (r *GormOutboxRepository) WithTx(tx *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: tx}
}

func withStatus(statuses ...shared.OutboxStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 1 {
			return db.Where("status = ?", statuses[0])
		}
		return db.Where("status IN ?", statuses)
	}
}

func (r *GormOutboxRepository) rows(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.OutboxEntryModel{})
}

// inStatus applies the status filter immediately. A scope would only run
// after every chained Where.
func (r *GormOutboxRepository) inStatus(ctx context.Context, statuses ...shared.OutboxStatus) *gorm.DB {
	return withStatus(statuses...)(r.db.WithContext(ctx))
}

func (r *GormOutboxRepository) find(q *gorm.DB) ([]*shared.OutboxEntry, error) {
	var rows []*models.OutboxEntryModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.OutboxEntriesToDomain(rows), nil
}

func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.OutboxEntryModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindPending returns PENDING rows created at or before createdBefore, oldest first
func (r *GormOutboxRepository) FindPending(ctx context.Context, createdBefore time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(r.inStatus(ctx, shared.OutboxStatusPending).
		Where("created_at <= ?", createdBefore).
		Order("created_at ASC").
		Limit(limit))
}

// FindRetryable returns FAILED rows due at or before before, earliest first
func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(r.inStatus(ctx, shared.OutboxStatusFailed).
		Where("next_retry_at <= ?", before).
		Order("next_retry_at ASC").
		Limit(limit))
}

// MarkProcessing claims the PENDING or FAILED rows among ids. Rows another
// relay holds locked are skipped, so concurrent relays never deliver the
// same row twice from one poll.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var claimed []*models.OutboxEntryModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
			Where("id IN ?", ids).
			Scopes(withStatus(shared.OutboxStatusPending, shared.OutboxStatusFailed)).
			Find(&claimed).Error
		if err != nil || len(claimed) == 0 {
			return err
		}

		now := time.Now().UTC()
		won := make([]uuid.UUID, len(claimed))
		for i, m := range claimed {
			won[i] = m.ID
			m.Status, m.UpdatedAt = shared.OutboxStatusProcessing, now
		}
		return tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ?", won).
			Updates(map[string]any{"status": shared.OutboxStatusProcessing, "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return models.OutboxEntriesToDomain(claimed), nil
}

// MarkSent acknowledges rows delivered inline. Rows the relay has already
// moved to FAILED or DEAD keep their state.
func (r *GormOutboxRepository) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return r.rows(ctx).
		Where("id IN ?", ids).
		Scopes(withStatus(shared.OutboxStatusPending, shared.OutboxStatusProcessing)).
		Updates(map[string]any{
			"status":       shared.OutboxStatusSent,
			"processed_at": now,
			"updated_at":   now,
		}).Error
}

// Update writes the whole row back
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(models.OutboxEntryModelFromDomain(entry)).Error
}

func (r *GormOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res := r.inStatus(ctx, shared.OutboxStatusSent).
		Where("processed_at < ?", before).
		Delete(&models.OutboxEntryModel{})
	return res.RowsAffected, res.Error
}

// FindDead returns one page of DEAD rows, most recently failed first, and
// the total number of DEAD rows.
func (r *GormOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	var total int64
	if err := r.rows(ctx).Scopes(withStatus(shared.OutboxStatusDead)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	entries, err := r.find(r.inStatus(ctx, shared.OutboxStatusDead).
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize))
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxEntryModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var groups []struct {
		Status shared.OutboxStatus
		N      int64
	}
	if err := r.rows(ctx).Select("status, count(*) AS n").Group("status").Scan(&groups).Error; err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64, len(groups))
	for _, g := range groups {
		counts[g.Status] = g.N
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
