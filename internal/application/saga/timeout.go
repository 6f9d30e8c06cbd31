package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TimeoutService moves overdue sagas to TIMED_OUT
type TimeoutService struct {
	repo      procman.Repository
	handlers  map[string]Handler
	batchSize int
	logger    *zap.Logger
}

// NewTimeoutService creates a sweep over the given handlers
func NewTimeoutService(repo procman.Repository, handlers []Handler, batchSize int, logger *zap.Logger) *TimeoutService {
	if batchSize <= 0 {
		batchSize = 100
	}
	byType := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		byType[h.SagaType()] = h
	}
	return &TimeoutService{
		repo:      repo,
		handlers:  byType,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Sweep times out up to one batch of overdue instances and returns how many
// moved. Records changed concurrently are left for the next sweep; other
// failures are logged, collected and returned together.
func (s *TimeoutService) Sweep(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.repo.FindTimedOut(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("find overdue process managers: %w", err)
	}

	var (
		timedOut int
		errs     []error
	)
	for _, pm := range overdue {
		if err := ctx.Err(); err != nil {
			return timedOut, err
		}

		h, ok := s.handlers[pm.SagaType]
		if !ok {
			s.logger.Warn("no handler for overdue saga type",
				zap.String("procman_id", pm.ID),
				zap.String("saga_type", pm.SagaType),
			)
			continue
		}

		err := h.ApplyTimeout(ctx, pm, now)
		switch {
		case err == nil:
			timedOut++
		case errors.Is(err, shared.ErrConcurrencyConflict), errors.Is(err, ErrAlreadyTerminal):
			s.logger.Debug("process manager changed during sweep, skipping",
				zap.String("procman_id", pm.ID),
				zap.Error(err),
			)
		default:
			s.logger.Error("failed to time out process manager",
				zap.String("procman_id", pm.ID),
				zap.String("saga_type", pm.SagaType),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	if timedOut > 0 {
		s.logger.Info("timed out overdue sagas", zap.Int("count", timedOut))
	}
	return timedOut, errors.Join(errs...)
}
