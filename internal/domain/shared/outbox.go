package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox row.
//
//	PENDING -> PROCESSING -> SENT
//	              |
//	              v
//	           FAILED -> PROCESSING ... -> DEAD -> (manual reset) PENDING
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries = 5
	// Retry n waits BaseRetryBackoff * 2^(n-1), capped at MaxRetryBackoff
	BaseRetryBackoff = time.Second
	MaxRetryBackoff  = 5 * time.Minute
	// MaxLastErrorLength bounds the stored failure text
	MaxLastErrorLength = 1024
)

// OutboxEntry is a domain event written in the same transaction as the
// aggregate change that raised it, awaiting delivery to the bus.
type OutboxEntry struct {
	ID            uuid.UUID
	EventID       string
	EventType     string
	ProcmanID     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps an encoded event in a PENDING row. The event id is
// kept so every redelivery of the row reuses it.
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now().UTC()
	return &OutboxEntry{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		ProcmanID:     event.ProcmanID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// RetryBackoff is the delay before retry number attempt (1-based)
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := BaseRetryBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= MaxRetryBackoff {
			return MaxRetryBackoff
		}
	}
	return d
}

func (e *OutboxEntry) MarkProcessing() error {
	if e.Status != OutboxStatusPending && e.Status != OutboxStatusFailed {
		return fmt.Errorf("outbox entry %s is %s, not claimable: %w", e.ID, e.Status, ErrInvalidState)
	}
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (e *OutboxEntry) MarkSent() {
	now := time.Now().UTC()
	e.Status = OutboxStatusSent
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkFailed records a delivery failure at now. The entry is scheduled for
// another attempt after RetryBackoff, or becomes DEAD once MaxRetries
// attempts have failed.
func (e *OutboxEntry) MarkFailed(cause error, now time.Time) {
	e.RetryCount++
	e.LastError = truncate(cause.Error(), MaxLastErrorLength)
	e.UpdatedAt = now

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	e.Status = OutboxStatusFailed
	next := now.Add(RetryBackoff(e.RetryCount))
	e.NextRetryAt = &next
}

// ResetForRetry returns a DEAD entry to PENDING with a fresh retry budget
func (e *OutboxEntry) ResetForRetry() error {
	if e.Status != OutboxStatusDead {
		return fmt.Errorf("outbox entry %s is %s, only dead letters can be retried: %w", e.ID, e.Status, ErrInvalidState)
	}
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// OutboxRepository persists outbox rows
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// FindPending returns PENDING rows created before createdBefore. Younger
	// rows are still being dispatched by the unit of work that wrote them.
	FindPending(ctx context.Context, createdBefore time.Time, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns FAILED rows whose NextRetryAt is before before
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	FindDead(ctx context.Context, page, pageSize int) ([]*OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// MarkProcessing claims the given rows and returns those this caller won
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	// MarkSent acknowledges PENDING or PROCESSING rows
	MarkSent(ctx context.Context, ids []uuid.UUID) error
	Update(ctx context.Context, entry *OutboxEntry) error
	// DeleteOlderThan removes SENT rows processed before before
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
