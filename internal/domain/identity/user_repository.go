package identity

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user persistence.
// Finders return found=false instead of an error when no row matches.
type UserRepository interface {
	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uuid.UUID) (*User, bool, error)
	// FindByRegistrationID finds the user created for a shop registration
	FindByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*User, bool, error)
	// Save inserts or updates a user
	Save(ctx context.Context, user *User) error
}
