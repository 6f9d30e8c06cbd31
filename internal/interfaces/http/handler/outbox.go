package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/application/event"
	"go.uber.org/zap"
)

// OutboxAdmin inspects the outbox and requeues dead entries
type OutboxAdmin interface {
	ListDead(ctx context.Context, filter event.PageQuery) (*event.DeadLetterPage, error)
	Entry(ctx context.Context, id uuid.UUID) (*event.EntryView, error)
	Requeue(ctx context.Context, id uuid.UUID) (*event.EntryView, error)
	RequeueAll(ctx context.Context) (int64, error)
	Counts(ctx context.Context) (*event.StatusCounts, error)
}

// OutboxHandler handles outbox dead-letter operations
type OutboxHandler struct {
	BaseHandler
	outbox OutboxAdmin
}

// NewOutboxHandler creates an OutboxHandler
func NewOutboxHandler(outbox OutboxAdmin, logger *zap.Logger) *OutboxHandler {
	return &OutboxHandler{BaseHandler: NewBaseHandler(logger), outbox: outbox}
}

// ListDead lists dead-letter entries
// GET /outbox/dead?page=1&page_size=20
func (h *OutboxHandler) ListDead(c *gin.Context) {
	var filter event.PageQuery
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	result, err := h.outbox.ListDead(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Entries, result.Total, result.Page, result.PageSize)
}

// Show returns one entry
// GET /outbox/entries/:id
func (h *OutboxHandler) Show(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	entry, err := h.outbox.Entry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Retry moves one dead entry back to pending
// POST /outbox/entries/:id/retry
func (h *OutboxHandler) Retry(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	entry, err := h.outbox.Requeue(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAll requeues every dead entry
// POST /outbox/dead/retry
func (h *OutboxHandler) RetryAll(c *gin.Context) {
	count, err := h.outbox.RequeueAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"retried": count})
}

// Stats returns entry counts per status
// GET /outbox/stats
func (h *OutboxHandler) Stats(c *gin.Context) {
	stats, err := h.outbox.Counts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

func (h *OutboxHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid entry id")
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes mounts the outbox routes on rg
func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/outbox")
	g.GET("/stats", h.Stats)
	g.GET("/dead", h.ListDead)
	g.POST("/dead/retry", h.RetryAll)
	g.GET("/entries/:id", h.Show)
	g.POST("/entries/:id/retry", h.Retry)
}
