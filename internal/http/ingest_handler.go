package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/ingestion"
)

// IngestHandler exposes the two ingestion endpoints named in §4.11: one
// returning the sampled-face review bundle, one accepting that bundle plus
// a caregiver name mapping and running the pipeline through to its
// finalized, Vault-upserted state.
type IngestHandler struct {
	logger   *zap.Logger
	pipeline *ingestion.Pipeline
}

func NewIngestHandler(logger *zap.Logger, pipeline *ingestion.Pipeline) *IngestHandler {
	return &IngestHandler{logger: logger, pipeline: pipeline}
}

// ExtractFaces runs S1 for the named event folder and returns its sampled
// face clusters, the bundle a caregiver reviews before naming anyone.
func (h *IngestHandler) ExtractFaces(c *gin.Context) {
	event := c.Param("event")
	if event == "" {
		badRequest(c, "event is required")
		return
	}

	clusters, err := h.pipeline.ExtractEventFaces(c.Request.Context(), event)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"clusters": clusters})
}

type nameMappingRequest struct {
	Clusters       []domain.FaceCluster `json:"clusters" binding:"required"`
	Forward        map[string]string    `json:"forward"`
	Reverse        map[string]*string   `json:"reverse"`
	CaregiverEmail string                `json:"caregiver_email"`
	Concurrency    int                   `json:"concurrency"`
}

// ApplyNamesAndFinalize runs S2 through S6 for the named event: applies the
// caregiver's name mapping to the reviewed clusters, generates per-file
// context, extracts and provisions voices, and upserts the finished
// MemoryRecords into the Vault — returning the finalized, annotated state
// of the event.
func (h *IngestHandler) ApplyNamesAndFinalize(c *gin.Context) {
	event := c.Param("event")
	if event == "" {
		badRequest(c, "event is required")
		return
	}

	var req nameMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	mapping := ingestion.NameMapping{Forward: req.Forward, Reverse: req.Reverse}

	people, err := h.pipeline.ApplyNameMapping(ctx, req.Clusters, mapping)
	if err != nil {
		fail(c, err)
		return
	}

	ctxFile, err := h.pipeline.GenerateEventContext(ctx, event, people, req.Concurrency)
	if err != nil {
		fail(c, err)
		return
	}

	people, err = h.pipeline.ExtractAndProvisionVoices(ctx, event, people, ctxFile)
	if err != nil {
		fail(c, err)
		return
	}

	upserted, err := h.pipeline.UpsertEvent(ctx, event, req.CaregiverEmail, ctxFile)
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"event":             event,
		"people":            people,
		"memories_upserted": upserted,
	})
}
