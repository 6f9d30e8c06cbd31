package event

import (
	"context"
	"fmt"

	"github.com/shopkit/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher writes domain events to the outbox within a transaction
type OutboxPublisher struct {
	serializer *EventSerializer
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{
		serializer: serializer,
	}
}

// PublishWithTx writes events to the outbox within the provided transaction
// and returns the stored entries in event order. The entries become visible
// to the relay only when the transaction commits.
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) ([]*shared.OutboxEntry, error) {
	if len(events) == 0 {
		return nil, nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return nil, fmt.Errorf("outbox: %s: %w", event.EventID(), err)
		}
		entries = append(entries, shared.NewOutboxEntry(event, payload))
	}

	repo := NewGormOutboxRepository(tx)
	if err := repo.Save(ctx, entries...); err != nil {
		return nil, err
	}
	return entries, nil
}
