package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUserRepository implements UserRepository using GORM
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, bool, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByRegistrationID finds the user created for a shop registration
func (r *GormUserRepository) FindByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*identity.User, bool, error) {
	return r.findOne(ctx, "registration_id = ?", registrationID)
}

func (r *GormUserRepository) findOne(ctx context.Context, query string, args ...any) (*identity.User, bool, error) {
	m, found, err := first[models.UserModel](r.db.WithContext(ctx), query, args...)
	if err != nil || !found {
		return nil, false, err
	}
	return m.ToDomain(), true, nil
}

// Save inserts or updates a user
func (r *GormUserRepository) Save(ctx context.Context, user *identity.User) error {
	m := &models.UserModel{}
	m.FromDomain(user)
	return translateWriteError("users", r.db.WithContext(ctx).Save(m).Error)
}

var _ identity.UserRepository = (*GormUserRepository)(nil)
