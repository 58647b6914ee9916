package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/history"
)

// HistoryHandler exposes get/stats/reset/export over the Conversation
// History store, per §4.11.
type HistoryHandler struct {
	logger *zap.Logger
	store  history.Store
}

func NewHistoryHandler(logger *zap.Logger, store history.Store) *HistoryHandler {
	return &HistoryHandler{logger: logger, store: store}
}

func (h *HistoryHandler) Get(c *gin.Context) {
	patientID, topic, ok2 := h.patientTopic(c)
	if !ok2 {
		return
	}
	turns, err := h.store.Slice(c.Request.Context(), patientID, topic, historyWindow(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"turns": turns})
}

func (h *HistoryHandler) Stats(c *gin.Context) {
	patientID, topic, ok2 := h.patientTopic(c)
	if !ok2 {
		return
	}
	stats, err := h.store.Stats(c.Request.Context(), patientID, topic)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"patient_turns": stats.PatientTurns,
		"agent_turns":   stats.AgentTurns,
		"started_at":    stats.StartedAt,
		"last_updated":  stats.LastUpdated,
	})
}

func (h *HistoryHandler) Reset(c *gin.Context) {
	patientID, topic, ok2 := h.patientTopic(c)
	if !ok2 {
		return
	}
	if err := h.store.Reset(c.Request.Context(), patientID, topic); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

// Export returns the full, unwindowed turn log for (patient_id, topic).
func (h *HistoryHandler) Export(c *gin.Context) {
	patientID, topic, ok2 := h.patientTopic(c)
	if !ok2 {
		return
	}
	turns, err := h.store.Slice(c.Request.Context(), patientID, topic, 0)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"turns": turns})
}

func (h *HistoryHandler) patientTopic(c *gin.Context) (string, string, bool) {
	patientID := c.Query("patient_id")
	topic := c.Query("topic")
	if patientID == "" || topic == "" {
		badRequest(c, "patient_id and topic are required")
		return "", "", false
	}
	return patientID, topic, true
}

func historyWindow(c *gin.Context) int {
	raw := c.Query("max_turns")
	if raw == "" {
		return history.DefaultWindowTurns
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return history.DefaultWindowTurns
	}
	return n
}
