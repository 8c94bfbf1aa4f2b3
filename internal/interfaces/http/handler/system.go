package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/erp/fulfillment/internal/infrastructure/logger"
	"github.com/erp/fulfillment/internal/interfaces/http/dto"
)

// SystemHandler serves liveness and the recent-logs view.
type SystemHandler struct {
	BaseHandler
	ring *logger.Ring
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(ring *logger.Ring) *SystemHandler {
	return &SystemHandler{ring: ring}
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/healthz", h.Health)
	rg.GET("/logs", h.Logs)
}

// Health reports liveness.
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, gin.H{"status": "ok"})
}

// Logs returns the most recent log lines, oldest first. An optional
// ?limit=N caps the count.
func (h *SystemHandler) Logs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	h.Success(c, dto.LogsResponse{Lines: h.ring.Tail(limit)})
}
