package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger is the subset of lifecycle.Runtime health-checking depends on.
type Pinger interface {
	Ready(ctx context.Context) error
}

// HealthHandler backs GET /healthz, the Supplemented readiness probe every
// deployment in front of the facade polls before routing traffic to it.
type HealthHandler struct {
	runtime Pinger
}

func NewHealthHandler(runtime Pinger) *HealthHandler {
	return &HealthHandler{runtime: runtime}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	if err := h.runtime.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "not_ready", "detail": err.Error()})
		return
	}
	ok(c, http.StatusOK, nil)
}
