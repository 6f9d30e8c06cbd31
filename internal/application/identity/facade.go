// Package identity is the public entry point into the identity module.
package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/application/uow"
	"github.com/shopkit/backend/internal/application/validation"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Facade handles user lifecycle operations. Every method runs in its own
// unit of work; events are delivered only after it commits.
type Facade struct {
	uow    uow.UnitOfWork
	logger *zap.Logger
}

// NewFacade creates a new identity Facade
func NewFacade(u uow.UnitOfWork, logger *zap.Logger) *Facade {
	return &Facade{uow: u, logger: logger}
}

// CreatePendingUser creates the pending user of a shop registration.
// A second call for the same registration is a no-op.
func (f *Facade) CreatePendingUser(ctx context.Context, registrationID uuid.UUID, email, mobile, procmanID string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "create_pending_user")
	defer span.End()

	cmd := createPendingUserCommand{RegistrationID: registrationID, Email: email, Mobile: mobile, ProcmanID: procmanID}
	if err := validation.Struct(cmd); err != nil {
		return err
	}

	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		existing, found, err := repos.Users().FindByRegistrationID(ctx, registrationID)
		if err != nil {
			return err
		}
		if found {
			f.logger.Info("pending user already exists, skipping",
				zap.String("registration_id", registrationID.String()),
				zap.String("user_id", existing.ID.String()))
			return nil
		}

		user, err := identity.NewPendingUser(registrationID, email, mobile, procmanID)
		if err != nil {
			return err
		}
		if err := repos.Users().Save(ctx, user); err != nil {
			return err
		}
		uow.RecordAggregate(repos, user)
		telemetry.SetAttribute(span, telemetry.SpanAttrUserID, user.ID.String())
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("create pending user for registration %s: %w", registrationID, err)
	}
	return nil
}

// ActivateUser activates a pending user
func (f *Facade) ActivateUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "activate_user",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()))
	defer span.End()

	err := f.withUser(ctx, userID, func(repos uow.Repositories, user *identity.User) error {
		if !user.Activate() {
			f.logger.Info("user already active, skipping", zap.String("user_id", userID.String()))
			return nil
		}
		return repos.Users().Save(ctx, user)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("activate user %s: %w", userID, err)
	}
	return nil
}

// RequestUserDataChange stores a pending contact data change and starts the
// confirmation workflow. It returns the procman id of that workflow.
func (f *Facade) RequestUserDataChange(ctx context.Context, userID uuid.UUID, newEmail, newMobile string) (string, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "request_user_data_change",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()))
	defer span.End()

	cmd := requestDataChangeCommand{UserID: userID, NewEmail: newEmail, NewMobile: newMobile}
	if err := validation.Struct(cmd); err != nil {
		return "", err
	}

	token, hash, err := shared.NewConfirmationToken()
	if err != nil {
		return "", fmt.Errorf("generate confirmation token: %w", err)
	}
	procmanID := shared.NewProcmanID()

	err = f.withUser(ctx, userID, func(repos uow.Repositories, user *identity.User) error {
		if err := user.RequestDataChange(newEmail, newMobile, token, hash, procmanID); err != nil {
			return err
		}
		if err := repos.Users().Save(ctx, user); err != nil {
			return err
		}
		uow.RecordAggregate(repos, user)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return "", fmt.Errorf("request data change of user %s: %w", userID, err)
	}
	return procmanID, nil
}

// ConfirmUserDataChange checks the mailed token of a pending data change.
// Confirming twice is a no-op.
func (f *Facade) ConfirmUserDataChange(ctx context.Context, userID uuid.UUID, token string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "confirm_user_data_change",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()))
	defer span.End()

	err := f.withUser(ctx, userID, func(repos uow.Repositories, user *identity.User) error {
		confirmed, err := user.ConfirmDataChange(token)
		if err != nil {
			return err
		}
		if !confirmed {
			f.logger.Info("data change already confirmed, skipping", zap.String("user_id", userID.String()))
			return nil
		}
		if err := repos.Users().Save(ctx, user); err != nil {
			return err
		}
		uow.RecordAggregate(repos, user)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("confirm data change of user %s: %w", userID, err)
	}
	return nil
}

// ApplyUserDataChange copies a confirmed change onto the user
func (f *Facade) ApplyUserDataChange(ctx context.Context, userID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "apply_user_data_change",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()))
	defer span.End()

	err := f.withUser(ctx, userID, func(repos uow.Repositories, user *identity.User) error {
		if !user.ApplyDataChange() {
			f.logger.Info("no confirmed data change to apply, skipping", zap.String("user_id", userID.String()))
			return nil
		}
		return repos.Users().Save(ctx, user)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("apply data change of user %s: %w", userID, err)
	}
	return nil
}

// FindUser returns the view of a user
func (f *Facade) FindUser(ctx context.Context, userID uuid.UUID) (UserView, bool, error) {
	var (
		view  UserView
		found bool
	)
	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		user, ok, err := repos.Users().FindByID(ctx, userID)
		if err != nil || !ok {
			return err
		}
		view, found = ToUserView(user), true
		return nil
	})
	if err != nil {
		return UserView{}, false, fmt.Errorf("find user %s: %w", userID, err)
	}
	return view, found, nil
}

// withUser loads a user inside a unit of work and runs fn on it
func (f *Facade) withUser(ctx context.Context, userID uuid.UUID, fn func(repos uow.Repositories, user *identity.User) error) error {
	return f.uow.Execute(ctx, func(repos uow.Repositories) error {
		user, found, err := repos.Users().FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if !found {
			return shared.ErrNotFound
		}
		return fn(repos, user)
	})
}
