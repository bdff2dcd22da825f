package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	redis redis.UniversalClient
}

// NewHealthHandler creates the health endpoint handler.
func NewHealthHandler(client redis.UniversalClient) *HealthHandler {
	return &HealthHandler{redis: client}
}

// Health reports service and shared-store health.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	redisStatus := "up"
	if h.redis == nil {
		redisStatus = "disabled"
	} else if err := h.redis.Ping(ctx).Err(); err != nil {
		// Degraded, not dead: verification still works fail-open or rejects
		// fail-closed, but the process itself is healthy.
		redisStatus = "down"
	}

	c.JSON(status, gin.H{
		"status": "ok",
		"redis":  redisStatus,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
