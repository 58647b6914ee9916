package http

import (
	"encoding/base64"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/apperr"
)

// PassthroughHandler exposes thin wrappers over Transcribe, TTS, Lip-Sync
// and Sound-Effects, per §4.11. Each one does nothing but shape validation
// and error translation, same as every other facade handler.
type PassthroughHandler struct {
	logger  *zap.Logger
	stt     adapters.SpeechToText
	tts     adapters.TTS
	lipsync adapters.LipSync
	sfx     adapters.SoundEffects
}

func NewPassthroughHandler(logger *zap.Logger, stt adapters.SpeechToText, tts adapters.TTS, lipsync adapters.LipSync, sfx adapters.SoundEffects) *PassthroughHandler {
	return &PassthroughHandler{logger: logger, stt: stt, tts: tts, lipsync: lipsync, sfx: sfx}
}

func (h *PassthroughHandler) Transcribe(c *gin.Context) {
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

	text, err := h.stt.Transcribe(c.Request.Context(), audio)
	if err != nil {
		fail(c, apperr.ExternalUnavailable("transcribe audio", err))
		return
	}
	ok(c, http.StatusOK, gin.H{"transcript": text})
}

func (h *PassthroughHandler) TTS(c *gin.Context) {
	var req struct {
		Text      string `json:"text" binding:"required"`
		VoiceName string `json:"voice_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	audio, err := h.tts.Synthesize(c.Request.Context(), req.Text, req.VoiceName)
	if err != nil {
		fail(c, apperr.TTSUnavailable("synthesize speech", err))
		return
	}
	ok(c, http.StatusOK, gin.H{"audio_base64": base64.StdEncoding.EncodeToString(audio)})
}

func (h *PassthroughHandler) LipSync(c *gin.Context) {
	var req struct {
		ImageOrVideoURL string `json:"image_or_video_url" binding:"required"`
		AudioBase64     string `json:"audio_base64" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		badRequest(c, "audio_base64 is not valid base64")
		return
	}

	videoURL, err := h.lipsync.Generate(c.Request.Context(), req.ImageOrVideoURL, audio)
	if err != nil {
		fail(c, apperr.LipSyncUnavailable("generate lip-synced video", err))
		return
	}
	ok(c, http.StatusOK, gin.H{"video_url": videoURL})
}

func (h *PassthroughHandler) SoundEffects(c *gin.Context) {
	var req struct {
		Prompt          string  `json:"prompt" binding:"required"`
		DurationSeconds float64 `json:"duration_seconds" binding:"required"`
		PromptInfluence float64 `json:"prompt_influence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	audio, err := h.sfx.Generate(c.Request.Context(), req.Prompt, req.DurationSeconds, req.PromptInfluence)
	if err != nil {
		fail(c, apperr.ExternalUnavailable("generate sound effect", err))
		return
	}
	ok(c, http.StatusOK, gin.H{"audio_base64": base64.StdEncoding.EncodeToString(audio)})
}
