package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TimeoutSweeper moves overdue process managers to their timed out state
type TimeoutSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// ProcessManagerTimeoutSchedulerConfig holds configuration for the timeout sweep
type ProcessManagerTimeoutSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval is the time between two sweeps
	Interval time.Duration

	// SweepTimeout bounds a single sweep
	SweepTimeout time.Duration
}

// DefaultProcessManagerTimeoutSchedulerConfig returns default configuration
func DefaultProcessManagerTimeoutSchedulerConfig() ProcessManagerTimeoutSchedulerConfig {
	return ProcessManagerTimeoutSchedulerConfig{
		Enabled:      true,
		Interval:     time.Minute,
		SweepTimeout: 30 * time.Second,
	}
}

// ProcessManagerTimeoutScheduler runs the saga timeout sweep on a ticker
type ProcessManagerTimeoutScheduler struct {
	sweeper   TimeoutSweeper
	logger    *zap.Logger
	config    ProcessManagerTimeoutSchedulerConfig
	clock     func() time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewProcessManagerTimeoutScheduler creates a new timeout scheduler
func NewProcessManagerTimeoutScheduler(
	sweeper TimeoutSweeper,
	logger *zap.Logger,
	config ProcessManagerTimeoutSchedulerConfig,
) *ProcessManagerTimeoutScheduler {
	defaults := DefaultProcessManagerTimeoutSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = defaults.SweepTimeout
	}
	return &ProcessManagerTimeoutScheduler{
		sweeper: sweeper,
		logger:  logger,
		config:  config,
		clock:   time.Now,
	}
}

// Start starts the sweep loop
func (s *ProcessManagerTimeoutScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("process manager timeout scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("process manager timeout scheduler started",
		zap.Duration("interval", s.config.Interval),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *ProcessManagerTimeoutScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("process manager timeout scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("process manager timeout scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the sweep loop is active
func (s *ProcessManagerTimeoutScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RunOnce performs a single sweep, for manual triggering
func (s *ProcessManagerTimeoutScheduler) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()
	return s.sweeper.Sweep(ctx, s.clock().UTC())
}

func (s *ProcessManagerTimeoutScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("process manager timeout sweep failed",
					zap.Int("timed_out", n),
					zap.Error(err),
				)
				continue
			}
			if n > 0 {
				s.logger.Debug("process manager timeout sweep finished", zap.Int("timed_out", n))
			}
		}
	}
}
