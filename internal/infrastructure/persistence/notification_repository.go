package persistence

import (
	"context"

	"github.com/shopkit/backend/internal/domain/customer"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormNotificationRepository implements NotificationRepository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// FindByDedupKey finds the notification recorded for a dedup key
func (r *GormNotificationRepository) FindByDedupKey(ctx context.Context, key string) (*customer.Notification, bool, error) {
	m, found, err := first[models.NotificationModel](r.db.WithContext(ctx), "dedup_key = ?", key)
	if err != nil || !found {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

// Save inserts or updates a notification
func (r *GormNotificationRepository) Save(ctx context.Context, n *customer.Notification) error {
	m := &models.NotificationModel{}
	m.FromDomain(n)
	return translateWriteError("notifications", r.db.WithContext(ctx).Save(m).Error)
}

var _ customer.NotificationRepository = (*GormNotificationRepository)(nil)
