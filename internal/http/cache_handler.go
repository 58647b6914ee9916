package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/cache"
)

// CacheHandler exposes stats/clear over the TTL cache, per §4.11.
type CacheHandler struct {
	logger *zap.Logger
	store  cache.Store
}

func NewCacheHandler(logger *zap.Logger, store cache.Store) *CacheHandler {
	return &CacheHandler{logger: logger, store: store}
}

func (h *CacheHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"hits": stats.Hits, "misses": stats.Misses})
}

func (h *CacheHandler) Clear(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}
