package event

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CommittedEventDispatcher delivers events whose outbox rows were just
// committed. It posts them on the bus and then schedules the outbox
// acknowledgement through the same runner, so the rows are marked SENT only
// after every deferred handler queued for them has run.
type CommittedEventDispatcher struct {
	publisher shared.EventPublisher
	runner    shared.HandlerRunner
	outbox    shared.OutboxRepository
	logger    *zap.Logger
}

// NewCommittedEventDispatcher creates a dispatcher
func NewCommittedEventDispatcher(
	publisher shared.EventPublisher,
	runner shared.HandlerRunner,
	outbox shared.OutboxRepository,
	logger *zap.Logger,
) *CommittedEventDispatcher {
	if runner == nil {
		runner = ImmediateRunner{}
	}
	return &CommittedEventDispatcher{
		publisher: publisher,
		runner:    runner,
		outbox:    outbox,
		logger:    logger,
	}
}

// Dispatch publishes events and acknowledges their outbox entries.
// On error the entries stay PENDING for the relay.
func (d *CommittedEventDispatcher) Dispatch(ctx context.Context, entries []*shared.OutboxEntry, events []shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	if err := d.publisher.Publish(ctx, events...); err != nil {
		d.logger.Warn("inline dispatch failed, leaving events to the outbox relay",
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	return d.runner.Run(ctx, func(ctx context.Context) error {
		if err := d.outbox.MarkSent(ctx, ids); err != nil {
			return fmt.Errorf("acknowledge outbox entries: %w", err)
		}
		return nil
	})
}
