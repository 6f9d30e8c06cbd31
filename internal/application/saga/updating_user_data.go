package saga

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/identity"
	"github.com/shopkit/backend/internal/domain/procman"
)

// SagaTypeUpdatingUserData names the contact data change workflow
const SagaTypeUpdatingUserData = "UpdatingUserData"

// UpdatingUserDataTimeout is how long a change token stays usable
const UpdatingUserDataTimeout = 24 * time.Hour

// UpdatingUserDataData is accumulated while a contact change waits for confirmation
type UpdatingUserDataData struct {
	UserID    uuid.UUID `json:"user_id"`
	OldEmail  string    `json:"old_email"`
	NewEmail  string    `json:"new_email"`
	NewMobile string    `json:"new_mobile"`
}

// NewUpdatingUserDataSaga builds the contact data change workflow
func NewUpdatingUserDataSaga(f Facades) *Definition[UpdatingUserDataData] {
	def := NewDefinition[UpdatingUserDataData](SagaTypeUpdatingUserData)

	On(def, identity.EventTypeUserDataChangeRequested, procman.StateStarted,
		func(ctx context.Context, e *identity.UserDataChangeRequestedEvent, inst *Instance[UpdatingUserDataData]) error {
			if err := f.Customer.SendUserDataChangeConfirmationEmail(ctx, e.NewEmail, e.ConfirmationToken); err != nil {
				return err
			}
			inst.Data = UpdatingUserDataData{
				UserID:    e.UserID,
				OldEmail:  e.CurrentEmail,
				NewEmail:  e.NewEmail,
				NewMobile: e.NewMobile,
			}
			inst.SetDeadline(UpdatingUserDataTimeout)
			inst.State = StateWaitingForConfirmation
			return nil
		})

	On(def, identity.EventTypeUserDataChangeConfirmed, StateWaitingForConfirmation,
		func(ctx context.Context, e *identity.UserDataChangeConfirmedEvent, inst *Instance[UpdatingUserDataData]) error {
			d := inst.Data
			if err := f.Identity.ApplyUserDataChange(ctx, e.UserID); err != nil {
				return err
			}
			if err := f.Shop.UpdateOwnerContact(ctx, e.UserID, d.NewEmail, d.NewMobile); err != nil {
				return err
			}
			if err := f.Customer.SendUserDataChangedEmail(ctx, d.NewEmail, inst.ID); err != nil {
				return err
			}
			inst.TimeoutAt = nil
			inst.State = procman.StateFinished
			return nil
		})

	return def
}
