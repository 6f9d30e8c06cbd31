package saga

import (
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Config holds the saga runtime settings
type Config struct {
	Handler    HandlerConfig
	SweepBatch int
}

// Module owns the handlers of every workflow and their timeout sweep
type Module struct {
	Handlers []Handler
	Timeouts *TimeoutService
}

// NewModule builds the four workflows over the given facades
func NewModule(f Facades, repo procman.Repository, cfg Config, logger *zap.Logger, opts ...HandlerOption) *Module {
	handlers := []Handler{
		NewProcessManagerHandler(NewShopRegistrationSaga(f), repo, cfg.Handler, logger, opts...),
		NewProcessManagerHandler(NewPayingForWonItemSaga(f), repo, cfg.Handler, logger, opts...),
		NewProcessManagerHandler(NewShopCreatingNewProductSaga(f), repo, cfg.Handler, logger, opts...),
		NewProcessManagerHandler(NewUpdatingUserDataSaga(f), repo, cfg.Handler, logger, opts...),
	}
	return &Module{
		Handlers: handlers,
		Timeouts: NewTimeoutService(repo, handlers, cfg.SweepBatch, logger),
	}
}

// Bind subscribes every handler as a deferred handler for the event types
// its definition declares
func Bind(bus shared.EventSubscriber, handlers ...Handler) {
	for _, h := range handlers {
		bus.SubscribeDeferred(h)
	}
}

// Bind subscribes the module's handlers on bus
func (m *Module) Bind(bus shared.EventSubscriber) {
	Bind(bus, m.Handlers...)
}
