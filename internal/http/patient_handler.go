package http

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/patientquery"
)

// PatientRuntime is the subset of patientquery.Runtime this handler depends
// on.
type PatientRuntime interface {
	Query(ctx context.Context, req patientquery.Request) (domain.DisplayPacket, error)
}

// PatientHandler serves the patient-facing query endpoint, with and without
// audio, per §4.11/§6. It stays open — patients carry no caregiver session.
type PatientHandler struct {
	logger  *zap.Logger
	runtime PatientRuntime
}

func NewPatientHandler(logger *zap.Logger, runtime PatientRuntime) *PatientHandler {
	return &PatientHandler{logger: logger, runtime: runtime}
}

// QueryWithAudio handles the multipart variant: audio_file, topic,
// optional patient_id.
func (h *PatientHandler) QueryWithAudio(c *gin.Context) {
	topic := c.PostForm("topic")
	if topic == "" {
		badRequest(c, "topic is required")
		return
	}
	patientID := c.PostForm("patient_id")

	fileHeader, err := c.FormFile("audio_file")
	if err != nil {
		badRequest(c, "audio_file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "could not open audio_file")
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "could not read audio_file")
		return
	}

	h.query(c, patientquery.Request{Audio: audio, Topic: topic, PatientID: patientID})
}

// QueryText handles the text-only variant.
func (h *PatientHandler) QueryText(c *gin.Context) {
	var req struct {
		Transcript string `json:"transcript" binding:"required"`
		Topic      string `json:"topic" binding:"required"`
		PatientID  string `json:"patient_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	h.query(c, patientquery.Request{Transcript: req.Transcript, Topic: req.Topic, PatientID: req.PatientID})
}

func (h *PatientHandler) query(c *gin.Context, req patientquery.Request) {
	packet, err := h.runtime.Query(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"topic":        packet.Topic,
		"text":         packet.Text,
		"display_mode": packet.DisplayMode,
		"media":        packet.Media,
	})
}
