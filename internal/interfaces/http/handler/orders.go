package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/fulfillment/internal/application/shipping"
	"github.com/erp/fulfillment/internal/domain/order"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
)

// FulfillmentService is the shipping pipeline surface the handlers use.
type FulfillmentService interface {
	Ship(ctx context.Context, orderID string) error
	PrintBatch(ctx context.Context, orderIDs []string) shipping.BatchResult
}

// SyncKicker requests an out-of-band sync cycle.
type SyncKicker interface {
	Kick()
}

// SessionInfo exposes the credential state the dashboard needs.
type SessionInfo interface {
	HasToken() bool
	AuthorizationURL() string
}

// OrderHandler serves the order book and the fulfillment commands.
type OrderHandler struct {
	BaseHandler
	store       *order.Store
	fulfillment FulfillmentService
	kicker      SyncKicker
	session     SessionInfo
	logger      *zap.Logger
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(
	store *order.Store,
	fulfillment FulfillmentService,
	kicker SyncKicker,
	session SessionInfo,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		store:       store,
		fulfillment: fulfillment,
		kicker:      kicker,
		session:     session,
		logger:      logger,
	}
}

// RegisterRoutes registers order routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/orders", h.Snapshot)
	rg.POST("/sync", h.TriggerSync)

	orders := rg.Group("/orders")
	{
		orders.POST("/:id/ship", h.Ship)
		orders.POST("/print", h.Print)
		orders.PATCH("/:id/note", h.UpdateNote)
		orders.POST("/batch", h.BatchUpdate)
	}
}

// Snapshot returns every known order plus the credential state. When no
// session exists the consent URL is included so the dashboard can offer
// the login link.
func (h *OrderHandler) Snapshot(c *gin.Context) {
	authorized := h.session.HasToken()
	resp := dto.SnapshotResponse{
		Orders:     h.store.Snapshot(),
		Authorized: authorized,
	}
	if !authorized {
		resp.AuthURL = h.session.AuthorizationURL()
	}
	h.Success(c, resp)
}

// TriggerSync kicks one sync cycle and returns immediately.
func (h *OrderHandler) TriggerSync(c *gin.Context) {
	h.kicker.Kick()
	h.Accepted(c, gin.H{"status": "sync scheduled"})
}

// Ship submits the ship command for one order and waits for the result.
func (h *OrderHandler) Ship(c *gin.Context) {
	id := c.Param("id")
	if !h.store.Has(id) {
		h.NotFound(c, "order not found: "+id)
		return
	}

	if err := h.fulfillment.Ship(c.Request.Context(), id); err != nil {
		h.logger.Warn("Ship request failed",
			zap.String("order_id", id),
			zap.Error(err),
		)
		h.Upstream(c, err.Error())
		return
	}

	h.Success(c, gin.H{"id": id, "status": order.StatusProcessed})
}

// Print issues and prints labels for a batch of orders. The response
// always carries both the processed and the failed id lists.
func (h *OrderHandler) Print(c *gin.Context) {
	var req dto.PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result := h.fulfillment.PrintBatch(c.Request.Context(), req.IDs)
	h.Success(c, result)
}

// UpdateNote replaces the free-form note of one order.
func (h *OrderHandler) UpdateNote(c *gin.Context) {
	id := c.Param("id")

	var req dto.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ok := h.store.Mutate(id, func(o *order.Order) {
		o.Note = req.Note
	})
	if !ok {
		h.NotFound(c, "order not found: "+id)
		return
	}
	h.Success(c, gin.H{"id": id})
}

// BatchUpdate assigns a picker or picking status across many orders.
// Unknown ids are skipped, the response reports how many were reached.
func (h *OrderHandler) BatchUpdate(c *gin.Context) {
	var req dto.BatchUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var fn func(*order.Order)
	switch req.Field {
	case "picker":
		fn = func(o *order.Order) { o.Picker = req.Value }
	case "status":
		fn = func(o *order.Order) { o.PickingStatus = req.Value }
	}

	updated := h.store.MutateAll(req.IDs, fn)
	h.Success(c, dto.BatchUpdateResponse{Updated: updated})
}
