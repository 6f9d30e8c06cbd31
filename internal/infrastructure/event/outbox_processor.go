package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Relay results reported to a RelayObserver
const (
	RelayResultSent   = "sent"
	RelayResultFailed = "failed"
	RelayResultDead   = "dead"
)

type RelayObserver interface {
	RecordRelay(ctx context.Context, eventType, result string)
}

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// GracePeriod keeps the relay away from rows whose writer is still
	// dispatching them inline after commit.
	GracePeriod time.Duration

	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		GracePeriod:      30 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessor is the relay. Rows the inline dispatch never acknowledged
// are claimed, decoded and republished; failures back off per
// shared.RetryBackoff until the row is dead-lettered.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	publisher  shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	observer   RelayObserver
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:       repo,
		publisher:  publisher,
		serializer: serializer,
		config:     config,
		logger:     logger,
	}
}

// SetObserver attaches relay metrics
func (p *OutboxProcessor) SetObserver(observer RelayObserver) {
	p.observer = observer
}

// Start launches the poll loop, plus the retention sweep when enabled.
// Both stop when ctx is cancelled or Stop is called.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.every(ctx, p.config.PollInterval, p.ProcessBatch)
	if p.config.CleanupEnabled {
		p.every(ctx, p.config.CleanupInterval, p.Cleanup)
	}
	p.logger.Debug("relay loops running",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Duration("grace_period", p.config.GracePeriod),
		zap.Bool("cleanup", p.config.CleanupEnabled),
	)
	return nil
}

// Stop cancels the loops and waits for the batch in flight, or for ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		p.wg.Wait()
	}()

	select {
	case <-idle:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) every(ctx context.Context, interval time.Duration, run func(context.Context, time.Time)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-ticker.C:
				run(ctx, tick.UTC())
			}
		}
	}()
}

// ProcessBatch relays one batch of PENDING rows older than the grace
// period, then one batch of FAILED rows whose retry is due at now.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context, now time.Time) {
	stale, err := p.repo.FindPending(ctx, now.Add(-p.config.GracePeriod), p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find pending entries", zap.Error(err))
		return
	}
	p.relay(ctx, stale)

	due, err := p.repo.FindRetryable(ctx, now, p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find retryable entries", zap.Error(err))
		return
	}
	p.relay(ctx, due)
}

// relay claims entries and delivers the ones this instance won
func (p *OutboxProcessor) relay(ctx context.Context, entries []*shared.OutboxEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to claim outbox entries", zap.Int("count", len(ids)), zap.Error(err))
		return
	}
	for _, entry := range claimed {
		p.deliver(logger.WithSagaEvent(ctx, entry.ProcmanID, entry.EventID), entry)
	}
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) {
	log := p.logger.With(
		zap.String("event_id", entry.EventID),
		zap.String("event_type", entry.EventType),
		zap.String("procman_id", entry.ProcmanID),
	)

	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.publisher.Publish(ctx, event)
	}
	if err != nil {
		p.reschedule(ctx, log, entry, err)
		return
	}

	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		log.Error("failed to acknowledge relayed entry", zap.Error(err))
		return
	}
	p.observe(ctx, entry.EventType, RelayResultSent)
	log.Debug("event relayed")
}

// reschedule records a failed delivery and persists the new schedule
func (p *OutboxProcessor) reschedule(ctx context.Context, log *zap.Logger, entry *shared.OutboxEntry, cause error) {
	entry.MarkFailed(cause, time.Now().UTC())

	result := RelayResultFailed
	if entry.IsDead() {
		result = RelayResultDead
		log.Warn("event moved to dead letter queue",
			zap.String("aggregate_type", entry.AggregateType),
			zap.Stringer("aggregate_id", entry.AggregateID),
			zap.Int("retry_count", entry.RetryCount),
			zap.Error(cause),
		)
	} else {
		log.Error("event relay failed",
			zap.Int("retry_count", entry.RetryCount),
			zap.Timep("next_retry_at", entry.NextRetryAt),
			zap.Error(cause),
		)
	}

	if err := p.repo.Update(ctx, entry); err != nil {
		log.Error("failed to persist relay failure", zap.Error(err))
	}
	p.observe(ctx, entry.EventType, result)
}

func (p *OutboxProcessor) observe(ctx context.Context, eventType, result string) {
	if p.observer != nil {
		p.observer.RecordRelay(ctx, eventType, result)
	}
}

// Cleanup deletes SENT rows processed before now minus the retention window
func (p *OutboxProcessor) Cleanup(ctx context.Context, now time.Time) {
	cutoff := now.Add(-p.config.CleanupRetention)
	n, err := p.repo.DeleteOlderThan(ctx, cutoff)
	switch {
	case err != nil:
		p.logger.Error("outbox cleanup failed", zap.Time("cutoff", cutoff), zap.Error(err))
	case n > 0:
		p.logger.Info("outbox cleanup", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
}
