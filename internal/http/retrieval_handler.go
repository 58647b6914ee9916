package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/domain"
)

// Retriever is the subset of retrieval.Engine this handler depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error)
}

// RetrievalHandler exposes search over GET and POST per §4.11.
type RetrievalHandler struct {
	logger *zap.Logger
	engine Retriever
}

func NewRetrievalHandler(logger *zap.Logger, engine Retriever) *RetrievalHandler {
	return &RetrievalHandler{logger: logger, engine: engine}
}

type retrievalSearchRequest struct {
	Query     string   `json:"query" form:"query" binding:"required"`
	K         int      `json:"k" form:"k"`
	EventName string   `json:"event_name" form:"event_name"`
	People    []string `json:"people" form:"people"`
}

func (h *RetrievalHandler) SearchPost(c *gin.Context) {
	var req retrievalSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.search(c, req)
}

func (h *RetrievalHandler) SearchGet(c *gin.Context) {
	var req retrievalSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.search(c, req)
}

func (h *RetrievalHandler) search(c *gin.Context, req retrievalSearchRequest) {
	filter := domain.Filter{EventName: req.EventName, People: req.People}
	result, err := h.engine.Retrieve(c.Request.Context(), req.Query, req.K, filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"query":      result.Query,
		"answer":     result.AnswerText,
		"memories":   result.Memories,
		"model_used": result.ModelUsed,
	})
}
