package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopkit/backend/internal/application/saga"
	"github.com/shopkit/backend/internal/domain/procman"
	"github.com/shopkit/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// ProcessManagerQuerier reads saga state
type ProcessManagerQuerier interface {
	Get(ctx context.Context, id string) (saga.ProcessManagerView, bool, error)
	History(ctx context.Context, id string) ([]saga.TransitionView, error)
	Counts(ctx context.Context) ([]procman.StateCount, error)
}

// ProcmanHandler exposes read-only saga inspection
type ProcmanHandler struct {
	BaseHandler
	query ProcessManagerQuerier
}

// NewProcmanHandler creates a ProcmanHandler
func NewProcmanHandler(query ProcessManagerQuerier, logger *zap.Logger) *ProcmanHandler {
	return &ProcmanHandler{BaseHandler: NewBaseHandler(logger), query: query}
}

// Stats returns instance counts per saga type and state
// GET /procman/stats
func (h *ProcmanHandler) Stats(c *gin.Context) {
	counts, err := h.query.Counts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, counts)
}

// Get returns one process manager
// GET /procman/:id
func (h *ProcmanHandler) Get(c *gin.Context) {
	id := c.Param("id")
	view, found, err := h.query.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !found {
		h.NotFound(c, "process manager "+id+" not found")
		return
	}
	h.Success(c, view)
}

// History returns the transitions of one process manager
// GET /procman/:id/history
func (h *ProcmanHandler) History(c *gin.Context) {
	history, err := h.query.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}

// RegisterRoutes mounts the procman routes on rg
func (h *ProcmanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/procman")
	g.GET("/stats", h.Stats)
	g.GET("/:id", middleware.ProcmanSpan(), h.Get)
	g.GET("/:id/history", middleware.ProcmanSpan(), h.History)
}
