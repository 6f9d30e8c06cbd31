package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProcessManagerRepository implements procman.Repository using GORM.
// Saves are compare-and-swap on the version column.
type GormProcessManagerRepository struct {
	db *gorm.DB
}

// NewGormProcessManagerRepository creates a new GormProcessManagerRepository
func NewGormProcessManagerRepository(db *gorm.DB) *GormProcessManagerRepository {
	return &GormProcessManagerRepository{db: db}
}

// FindByID finds a process manager by its procman id
func (r *GormProcessManagerRepository) FindByID(ctx context.Context, id string) (*procman.ProcessManager, bool, error) {
	m, found, err := first[models.ProcessManagerModel](r.db.WithContext(ctx), "id = ?", id)
	if err != nil || !found {
		return nil, false, err
	}
	pm, err := m.ToDomain()
	if err != nil {
		return nil, false, fmt.Errorf("decode process manager %s: %w", id, err)
	}
	return pm, true, nil
}

// GetOrCreate loads a process manager or returns a new unsaved one
func (r *GormProcessManagerRepository) GetOrCreate(ctx context.Context, id, sagaType string) (*procman.ProcessManager, error) {
	pm, found, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return procman.New(id, sagaType), nil
	}
	if pm.SagaType != sagaType {
		return nil, fmt.Errorf("process manager %s belongs to saga %s, not %s: %w",
			id, pm.SagaType, sagaType, shared.ErrInvalidState)
	}
	return pm, nil
}

// Save inserts or updates pm and appends transition in one transaction
func (r *GormProcessManagerRepository) Save(ctx context.Context, pm *procman.ProcessManager, transition *procman.Transition) error {
	m := &models.ProcessManagerModel{}
	if err := m.FromDomain(pm); err != nil {
		return fmt.Errorf("encode process manager %s: %w", pm.ID, err)
	}
	now := time.Now().UTC()
	m.Version = pm.Version + 1
	m.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if pm.IsNew() {
			if err := tx.Create(m).Error; err != nil {
				if isDuplicateKey(err) {
					return shared.ErrConcurrencyConflict
				}
				return err
			}
		} else {
			res := tx.Model(&models.ProcessManagerModel{}).
				Where("id = ? AND version = ?", pm.ID, pm.Version).
				Updates(map[string]any{
					"state":            m.State,
					"timeout_at":       m.TimeoutAt,
					"data":             m.Data,
					"processed_events": m.ProcessedEvents,
					"version":          m.Version,
					"updated_at":       m.UpdatedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return shared.ErrConcurrencyConflict
			}
		}

		if transition == nil {
			return nil
		}
		tm := &models.ProcessManagerTransitionModel{}
		tm.FromDomain(transition)
		return tx.Create(tm).Error
	})
	if err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			return fmt.Errorf("process manager %s at version %d: %w", pm.ID, pm.Version, err)
		}
		return fmt.Errorf("save process manager %s: %w", pm.ID, err)
	}

	pm.Version = m.Version
	pm.UpdatedAt = now
	return nil
}

// FindTimedOut returns running process managers whose deadline has passed,
// oldest deadline first
func (r *GormProcessManagerRepository) FindTimedOut(ctx context.Context, now time.Time, limit int) ([]*procman.ProcessManager, error) {
	var rows []models.ProcessManagerModel
	if err := r.db.WithContext(ctx).
		Where("state NOT IN ? AND timeout_at IS NOT NULL AND timeout_at <= ?",
			[]string{procman.StateFinished, procman.StateTimedOut}, now).
		Order("timeout_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*procman.ProcessManager, 0, len(rows))
	for i := range rows {
		pm, err := rows[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("decode process manager %s: %w", rows[i].ID, err)
		}
		result = append(result, pm)
	}
	return result, nil
}

// History returns the transitions of a process manager, oldest first
func (r *GormProcessManagerRepository) History(ctx context.Context, id string) ([]*procman.Transition, error) {
	var rows []models.ProcessManagerTransitionModel
	if err := r.db.WithContext(ctx).
		Where("procman_id = ?", id).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*procman.Transition, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, nil
}

// CountByState returns the number of process managers per saga type and state
func (r *GormProcessManagerRepository) CountByState(ctx context.Context) ([]procman.StateCount, error) {
	var counts []procman.StateCount
	if err := r.db.WithContext(ctx).
		Model(&models.ProcessManagerModel{}).
		Select("saga_type, state, COUNT(*) AS count").
		Group("saga_type, state").
		Order("saga_type, state").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

var _ procman.Repository = (*GormProcessManagerRepository)(nil)
