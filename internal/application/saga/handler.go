package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/infrastructure/logger"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TimeoutEventType is recorded in the history for sweep driven transitions
const TimeoutEventType = "Timeout"

// HandlerConfig tunes the compare-and-swap retry of a handler
type HandlerConfig struct {
	// MaxRetries is the number of attempts of one read-modify-write cycle
	MaxRetries int
	// RetryBackoff is the base delay; attempt n waits up to n*RetryBackoff
	RetryBackoff time.Duration
}

// DefaultHandlerConfig returns the defaults used when a field is zero
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{MaxRetries: 5, RetryBackoff: 20 * time.Millisecond}
}

// Observer receives saga metrics
type Observer interface {
	RecordTransition(ctx context.Context, sagaType, from, to string)
	RecordHandleDuration(ctx context.Context, sagaType, eventType string, d time.Duration, err error)
	RecordConflict(ctx context.Context, sagaType string)
	RecordTimeout(ctx context.Context, sagaType string)
}

type nopObserver struct{}

func (nopObserver) RecordTransition(context.Context, string, string, string) {}
func (nopObserver) RecordHandleDuration(context.Context, string, string, time.Duration, error) {}
func (nopObserver) RecordConflict(context.Context, string) {}
func (nopObserver) RecordTimeout(context.Context, string) {}

// Handler is the non-generic view of a ProcessManagerHandler used for
// wiring and the timeout sweep
type Handler interface {
	shared.EventHandler
	SagaType() string
	ApplyTimeout(ctx context.Context, pm *procman.ProcessManager, now time.Time) error
}

// HandlerOption configures a ProcessManagerHandler
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	observer Observer
	clock    func() time.Time
}

// WithObserver attaches a metrics observer
func WithObserver(o Observer) HandlerOption {
	return func(opts *handlerOptions) {
		if o != nil {
			opts.observer = o
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(clock func() time.Time) HandlerOption {
	return func(opts *handlerOptions) {
		opts.clock = clock
	}
}

// ProcessManagerHandler connects a Definition to the event bus and the
// process manager repository. Each event is routed by its procman id to one
// persisted instance; the instance is loaded, run through the definition and
// saved with a version check. A lost race reloads and runs again.
type ProcessManagerHandler[D any] struct {
	def      *Definition[D]
	repo     procman.Repository
	config   HandlerConfig
	observer Observer
	clock    func() time.Time
	logger   *zap.Logger
}

// NewProcessManagerHandler creates a handler for def
func NewProcessManagerHandler[D any](
	def *Definition[D],
	repo procman.Repository,
	config HandlerConfig,
	log *zap.Logger,
	opts ...HandlerOption,
) *ProcessManagerHandler[D] {
	defaults := DefaultHandlerConfig()
	if config.MaxRetries < 1 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	o := handlerOptions{observer: nopObserver{}, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &ProcessManagerHandler[D]{
		def:      def,
		repo:     repo,
		config:   config,
		observer: o.observer,
		clock:    o.clock,
		logger:   log.With(zap.String("saga_type", def.SagaType())),
	}
}

// SagaType returns the definition's saga type
func (h *ProcessManagerHandler[D]) SagaType() string {
	return h.def.SagaType()
}

// EventTypes returns the event types the definition reacts to
func (h *ProcessManagerHandler[D]) EventTypes() []string {
	return h.def.EventTypes()
}

// Handle applies one event to the instance its procman id points at
func (h *ProcessManagerHandler[D]) Handle(ctx context.Context, event shared.DomainEvent) error {
	procmanID := event.ProcmanID()
	if procmanID == "" {
		return fmt.Errorf("saga %s: %s %s: %w", h.SagaType(), event.EventType(), event.EventID(), ErrMissingProcmanID)
	}

	ctx = logger.WithSagaEvent(ctx, procmanID, event.EventID())
	ctx, span := telemetry.StartSpan(ctx, "saga."+h.SagaType()+".handle",
		telemetry.WithAttribute(telemetry.SpanAttrSagaType, h.SagaType()),
		telemetry.WithAttribute(telemetry.SpanAttrProcmanID, procmanID),
		telemetry.WithAttribute(telemetry.SpanAttrEventID, event.EventID()),
		telemetry.WithAttribute(telemetry.SpanAttrEventType, event.EventType()),
	)
	defer span.End()

	start := time.Now()
	var err error
	telemetry.WithProfilingLabels(ctx, telemetry.SagaLabels(h.SagaType(), event.EventType()), func(ctx context.Context) {
		err = h.retry(ctx, func(ctx context.Context) error {
			return h.handleOnce(ctx, event)
		})
	})
	h.observer.RecordHandleDuration(ctx, h.SagaType(), event.EventType(), time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	return nil
}

func (h *ProcessManagerHandler[D]) handleOnce(ctx context.Context, event shared.DomainEvent) error {
	pm, err := h.repo.GetOrCreate(ctx, event.ProcmanID(), h.SagaType())
	if err != nil {
		return fmt.Errorf("load process manager %s: %w", event.ProcmanID(), err)
	}

	if pm.HasProcessed(event.EventID()) {
		h.logger.Info("event already applied, skipping",
			zap.String("procman_id", pm.ID),
			zap.String("event_id", event.EventID()),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	inst, err := h.load(pm)
	if err != nil {
		return err
	}
	from := inst.State
	if err := h.def.Handle(ctx, event, inst); err != nil {
		return err
	}
	if err := h.store(pm, inst); err != nil {
		return err
	}
	pm.MarkProcessed(event.EventID())

	return h.save(ctx, pm, event.EventID(), event.EventType(), from)
}

// ApplyTimeout forces pm into TIMED_OUT and saves it. A conflict is returned
// as is so the sweep can leave the record for its next run.
func (h *ProcessManagerHandler[D]) ApplyTimeout(ctx context.Context, pm *procman.ProcessManager, now time.Time) error {
	ctx = logger.WithSagaEvent(ctx, pm.ID, "")
	ctx, span := telemetry.StartSpan(ctx, "saga."+h.SagaType()+".timeout",
		telemetry.WithAttribute(telemetry.SpanAttrSagaType, h.SagaType()),
		telemetry.WithAttribute(telemetry.SpanAttrProcmanID, pm.ID),
	)
	defer span.End()

	inst, err := h.load(pm)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	inst.now = now
	from := inst.State
	if err := h.def.Timeout(inst); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := h.store(pm, inst); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := h.save(ctx, pm, "", TimeoutEventType, from); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	h.observer.RecordTimeout(ctx, h.SagaType())
	return nil
}

func (h *ProcessManagerHandler[D]) load(pm *procman.ProcessManager) (*Instance[D], error) {
	var data D
	if len(pm.Data) > 0 {
		if err := json.Unmarshal(pm.Data, &data); err != nil {
			return nil, fmt.Errorf("decode %s data of %s: %w", h.SagaType(), pm.ID, err)
		}
	}
	inst := NewInstance(pm.ID, pm.State, data, h.clock().UTC())
	inst.TimeoutAt = pm.TimeoutAt
	return inst, nil
}

func (h *ProcessManagerHandler[D]) store(pm *procman.ProcessManager, inst *Instance[D]) error {
	raw, err := json.Marshal(inst.Data)
	if err != nil {
		return fmt.Errorf("encode %s data of %s: %w", h.SagaType(), pm.ID, err)
	}
	pm.Data = raw
	pm.State = inst.State
	pm.TimeoutAt = inst.TimeoutAt
	return nil
}

func (h *ProcessManagerHandler[D]) save(ctx context.Context, pm *procman.ProcessManager, eventID, eventType, from string) error {
	t := procman.NewTransition(pm, eventID, eventType, from)
	t.TraceID = telemetry.GetTraceID(ctx)
	t.SpanID = telemetry.GetSpanID(ctx)
	if err := h.repo.Save(ctx, pm, t); err != nil {
		return fmt.Errorf("save process manager %s: %w", pm.ID, err)
	}

	h.observer.RecordTransition(ctx, h.SagaType(), from, pm.State)
	h.logger.Info("saga transition",
		zap.String("procman_id", pm.ID),
		zap.String("event_type", eventType),
		zap.String("from", from),
		zap.String("to", pm.State),
		zap.Int("version", pm.Version),
	)
	return nil
}

// retry runs fn until it succeeds, fails with something other than a
// version conflict or runs out of attempts
func (h *ProcessManagerHandler[D]) retry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= h.config.MaxRetries; attempt++ {
		err = fn(ctx)
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
		h.observer.RecordConflict(ctx, h.SagaType())
		if attempt == h.config.MaxRetries {
			break
		}

		delay := h.backoff(attempt)
		h.logger.Debug("process manager changed concurrently, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("saga %s: gave up after %d attempts: %w", h.SagaType(), h.config.MaxRetries, err)
}

// backoff returns a delay in [base*attempt/2, base*attempt)
func (h *ProcessManagerHandler[D]) backoff(attempt int) time.Duration {
	ceiling := h.config.RetryBackoff * time.Duration(attempt)
	half := ceiling / 2
	return half + rand.N(ceiling-half)
}

var _ Handler = (*ProcessManagerHandler[ShopRegistrationData])(nil)
