package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/experience"
)

// ExperienceComposer is the subset of experience.Composer this handler
// depends on.
type ExperienceComposer interface {
	Compose(ctx context.Context, req experience.Request) (domain.Experience, error)
	Get(ctx context.Context, experienceID string) (domain.Experience, error)
	GetByTopic(ctx context.Context, title string) (domain.Experience, error)
	List(ctx context.Context) ([]domain.Experience, error)
}

// ExperienceHandler exposes create/get-by-id/get-by-topic/list per §4.11.
type ExperienceHandler struct {
	logger   *zap.Logger
	composer ExperienceComposer
}

func NewExperienceHandler(logger *zap.Logger, composer ExperienceComposer) *ExperienceHandler {
	return &ExperienceHandler{logger: logger, composer: composer}
}

func (h *ExperienceHandler) Create(c *gin.Context) {
	var req struct {
		Title          string   `json:"title" binding:"required"`
		GeneralContext string   `json:"general_context" binding:"required"`
		Scenes         []string `json:"scenes" binding:"required"`
		TopK           int      `json:"top_k"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	exp, err := h.composer.Compose(c.Request.Context(), experience.Request{
		Title:          req.Title,
		GeneralContext: req.GeneralContext,
		Scenes:         req.Scenes,
		TopK:           req.TopK,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"experience": exp})
}

func (h *ExperienceHandler) GetByID(c *gin.Context) {
	exp, err := h.composer.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"experience": exp})
}

func (h *ExperienceHandler) GetByTopic(c *gin.Context) {
	exp, err := h.composer.GetByTopic(c.Request.Context(), c.Query("title"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"experience": exp})
}

func (h *ExperienceHandler) List(c *gin.Context) {
	exps, err := h.composer.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"experiences": exps})
}
