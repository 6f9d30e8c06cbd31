package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopkit/backend/internal/domain/procman"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const defaultCollectInterval = 5 * time.Minute

var ErrMeterNil = errors.New("saga metrics: meter is required")

// StateCounter reports how many process managers sit in each saga type
// and state. procman.Repository satisfies it.
type StateCounter interface {
	CountByState(ctx context.Context) ([]procman.StateCount, error)
}

type SagaMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
	// StateCounter feeds the saga_instances gauge; nil leaves it empty
	StateCounter StateCounter
}

// SagaMetrics is the saga.Observer and event.RelayObserver backed by OTel
// instruments.
type SagaMetrics struct {
	transitions *Counter
	conflicts   *Counter
	timeouts    *Counter
	relayed     *Counter
	handle      *Histogram
	instances   *Gauge

	states StateCounter
	logger *zap.Logger

	start sync.Once
	stop  sync.Once
	done  chan struct{}
}

func NewSagaMetrics(cfg SagaMetricsConfig) (*SagaMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	sm := &SagaMetrics{states: cfg.StateCounter, logger: cfg.Logger, done: make(chan struct{})}
	if sm.logger == nil {
		sm.logger = zap.NewNop()
	}

	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&sm.transitions, "saga_transitions_total", "Process manager state changes", "{transitions}"},
		{&sm.conflicts, "saga_conflicts_total", "Version conflicts when saving a process manager", "{conflicts}"},
		{&sm.timeouts, "saga_timeouts_total", "Process managers moved to TIMED_OUT", "{timeouts}"},
		{&sm.relayed, "outbox_relay_total", "Outbox entries handled by the relay, by result", "{entries}"},
	}
	var err error
	for _, c := range counters {
		if *c.dst, err = NewCounter(cfg.Meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}
	if sm.handle, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "saga_handle_duration_seconds",
		Description: "Time a process manager spends on one event",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if sm.instances, err = NewGauge(cfg.Meter, "saga_instances", "Process managers per saga type and state", "{instances}"); err != nil {
		return nil, err
	}
	return sm, nil
}

func (sm *SagaMetrics) RecordTransition(ctx context.Context, sagaType, from, to string) {
	sm.transitions.Inc(ctx, AttrSagaType.String(sagaType), AttrSagaFromState.String(from), AttrSagaToState.String(to))
}

// RecordHandleDuration labels the sample "ok" or "error" by err
func (sm *SagaMetrics) RecordHandleDuration(ctx context.Context, sagaType, eventType string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	sm.handle.RecordDuration(ctx, d, AttrSagaType.String(sagaType), AttrEventType.String(eventType), AttrOutcome.String(outcome))
}

func (sm *SagaMetrics) RecordConflict(ctx context.Context, sagaType string) {
	sm.conflicts.Inc(ctx, AttrSagaType.String(sagaType))
}

func (sm *SagaMetrics) RecordTimeout(ctx context.Context, sagaType string) {
	sm.timeouts.Inc(ctx, AttrSagaType.String(sagaType))
}

func (sm *SagaMetrics) RecordRelay(ctx context.Context, eventType, result string) {
	sm.relayed.Inc(ctx, AttrEventType.String(eventType), AttrOutcome.String(result))
}

func (sm *SagaMetrics) RecordInstances(ctx context.Context, sagaType, state string, count int64) {
	sm.instances.Record(ctx, count, AttrSagaType.String(sagaType), AttrSagaState.String(state))
}

// StartPeriodicCollection refreshes saga_instances now and then every
// interval until ctx ends or Stop is called. Only the first call starts
// the loop.
func (sm *SagaMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultCollectInterval
	}
	sm.start.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				sm.collect(ctx)
				select {
				case <-sm.done:
					return
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	})
}

func (sm *SagaMetrics) collect(ctx context.Context) {
	if sm.states == nil {
		return
	}
	counts, err := sm.states.CountByState(ctx)
	if err != nil {
		sm.logger.Warn("count process managers by state", zap.Error(err))
		return
	}
	for _, c := range counts {
		sm.RecordInstances(ctx, c.SagaType, c.State, c.Count)
	}
}

func (sm *SagaMetrics) Stop() {
	sm.stop.Do(func() { close(sm.done) })
}
