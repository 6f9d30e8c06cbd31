// Package event holds the ops use cases around the transactional outbox.
package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	CodeEntryNotFound = "OUTBOX_ENTRY_NOT_FOUND"
	CodeNotDead       = "OUTBOX_ENTRY_NOT_DEAD"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OutboxService lets operators inspect the outbox and hand dead letters
// back to the relay. A requeued row keeps its event id, so saga handlers
// that already applied it skip the redelivery.
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	return &OutboxService{repo: repo, logger: logger}
}

// EntryView is the ops view of one outbox row; the payload is omitted
type EntryView struct {
	ID            uuid.UUID  `json:"id"`
	EventID       string     `json:"event_id"`
	EventType     string     `json:"event_type"`
	ProcmanID     string     `json:"procman_id,omitempty"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type PageQuery struct {
	Page     int `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// normalize applies the default page size and clamps out-of-range values
func (f PageQuery) normalize() (page, size int) {
	page, size = max(f.Page, 1), f.PageSize
	switch {
	case size < 1:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return page, size
}

type DeadLetterPage struct {
	Entries    []EntryView `json:"entries"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

type StatusCounts struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// ListDead pages through DEAD rows
func (s *OutboxService) ListDead(ctx context.Context, filter PageQuery) (*DeadLetterPage, error) {
	page, size := filter.normalize()
	entries, total, err := s.repo.FindDead(ctx, page, size)
	if err != nil {
		return nil, fmt.Errorf("find dead letter entries: %w", err)
	}

	result := &DeadLetterPage{
		Entries:    make([]EntryView, 0, len(entries)),
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}
	for _, e := range entries {
		result.Entries = append(result.Entries, viewOf(e))
	}
	return result, nil
}

func (s *OutboxService) Entry(ctx context.Context, id uuid.UUID) (*EntryView, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := viewOf(entry)
	return &dto, nil
}

// Requeue resets one DEAD row to PENDING with a fresh retry budget.
// Rows in any other state answer CodeNotDead.
func (s *OutboxService) Requeue(ctx context.Context, id uuid.UUID) (*EntryView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "outbox", "requeue")
	defer span.End()

	entry, err := s.find(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrEventID, entry.EventID)
	telemetry.SetAttribute(span, telemetry.SpanAttrProcmanID, entry.ProcmanID)

	if err := entry.ResetForRetry(); err != nil {
		return nil, shared.NewDomainError(CodeNotDead, fmt.Sprintf("Outbox entry is %s, not DEAD", entry.Status))
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("reset outbox entry %s: %w", id, err)
	}

	s.logger.Info("dead outbox entry requeued",
		zap.String("entry_id", id.String()),
		zap.String("event_id", entry.EventID),
		zap.String("event_type", entry.EventType),
		zap.String("procman_id", entry.ProcmanID),
	)
	dto := viewOf(entry)
	return &dto, nil
}

func (s *OutboxService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, shared.ErrNotFound), err == nil && entry == nil:
		return nil, shared.NewDomainError(CodeEntryNotFound, "Outbox entry not found")
	case err != nil:
		return nil, fmt.Errorf("find outbox entry %s: %w", id, err)
	}
	return entry, nil
}

// RequeueAll requeues every DEAD row and returns how many were
// reset. Requeued rows leave the DEAD set, so the first page is re-read
// until it comes back empty; a page whose rows all fail to update is
// stepped over to guarantee progress.
func (s *OutboxService) RequeueAll(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "outbox", "requeue_all")
	defer span.End()

	var count int64
	byType := make(map[string]int)
	for page := 1; ; {
		entries, _, err := s.repo.FindDead(ctx, page, maxPageSize)
		if err != nil {
			telemetry.RecordError(span, err)
			return count, fmt.Errorf("find dead letter entries: %w", err)
		}

		reset := 0
		for _, entry := range entries {
			if entry.ResetForRetry() != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				s.logger.Error("failed to requeue outbox entry",
					zap.String("entry_id", entry.ID.String()),
					zap.Error(err),
				)
				continue
			}
			reset++
			byType[entry.EventType]++
		}
		count += int64(reset)

		if len(entries) < maxPageSize {
			break
		}
		if reset == 0 {
			page++
		}
	}

	s.logger.Info("dead outbox entries requeued",
		zap.Int64("count", count),
		zap.Any("by_event_type", byType),
	)
	return count, nil
}

// Counts counts rows per status
func (s *OutboxService) Counts(ctx context.Context) (*StatusCounts, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count outbox entries: %w", err)
	}

	stats := &StatusCounts{}
	for status, n := range counts {
		stats.Total += n
		switch status {
		case shared.OutboxStatusPending:
			stats.Pending = n
		case shared.OutboxStatusProcessing:
			stats.Processing = n
		case shared.OutboxStatusSent:
			stats.Sent = n
		case shared.OutboxStatusFailed:
			stats.Failed = n
		case shared.OutboxStatusDead:
			stats.Dead = n
		}
	}
	return stats, nil
}

func viewOf(e *shared.OutboxEntry) EntryView {
	return EntryView{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		ProcmanID:     e.ProcmanID,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
