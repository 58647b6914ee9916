package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(context.Context, []byte) (string, error) { return f.text, f.err }

type fakeTTS struct {
	audio []byte
	err   error
}

func (f *fakeTTS) Synthesize(context.Context, string, string) ([]byte, error) { return f.audio, f.err }

type fakeLipSync struct {
	videoURL string
	err      error
}

func (f *fakeLipSync) Generate(context.Context, string, []byte) (string, error) {
	return f.videoURL, f.err
}

type fakeSFX struct {
	audio []byte
	err   error
}

func (f *fakeSFX) Generate(context.Context, string, float64, float64) ([]byte, error) {
	return f.audio, f.err
}

func setupPassthroughRouter(stt *fakeSTT, tts *fakeTTS, lipsync *fakeLipSync, sfx *fakeSFX) *gin.Engine {
	r := gin.New()
	h := NewPassthroughHandler(zap.NewNop(), stt, tts, lipsync, sfx)
	r.POST("/transcribe", h.Transcribe)
	r.POST("/tts", h.TTS)
	r.POST("/lipsync", h.LipSync)
	r.POST("/sfx", h.SoundEffects)
	return r
}

func TestPassthroughHandler_Transcribe_Success(t *testing.T) {
	r := setupPassthroughRouter(&fakeSTT{text: "hello there"}, &fakeTTS{}, &fakeLipSync{}, &fakeSFX{})

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("audio_file", "clip.wav")
	_, _ = part.Write([]byte("fake-audio"))
	w.Close()

	req, _ := http.NewRequest(http.MethodPost, "/transcribe", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := performRawRequest(r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPassthroughHandler_Transcribe_AdapterFailureMapsTo502(t *testing.T) {
	r := setupPassthroughRouter(&fakeSTT{err: errors.New("vendor down")}, &fakeTTS{}, &fakeLipSync{}, &fakeSFX{})

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, _ := w.CreateFormFile("audio_file", "clip.wav")
	_, _ = part.Write([]byte("fake-audio"))
	w.Close()

	req, _ := http.NewRequest(http.MethodPost, "/transcribe", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := performRawRequest(r, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPassthroughHandler_TTS_Success(t *testing.T) {
	r := setupPassthroughRouter(&fakeSTT{}, &fakeTTS{audio: []byte("mp3-bytes")}, &fakeLipSync{}, &fakeSFX{})

	rec := performRequest(r, http.MethodPost, "/tts", map[string]string{"text": "hello", "voice_name": "nora"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(rec)
	if body["audio_base64"] != base64.StdEncoding.EncodeToString([]byte("mp3-bytes")) {
		t.Fatalf("unexpected audio_base64: %v", body["audio_base64"])
	}
}

func TestPassthroughHandler_LipSync_RejectsInvalidBase64(t *testing.T) {
	r := setupPassthroughRouter(&fakeSTT{}, &fakeTTS{}, &fakeLipSync{}, &fakeSFX{})

	rec := performRequest(r, http.MethodPost, "/lipsync", map[string]string{
		"image_or_video_url": "https://example.invalid/img.jpg", "audio_base64": "not-base64!!!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPassthroughHandler_SoundEffects_Success(t *testing.T) {
	r := setupPassthroughRouter(&fakeSTT{}, &fakeTTS{}, &fakeLipSync{}, &fakeSFX{audio: []byte("sfx-bytes")})

	rec := performRequest(r, http.MethodPost, "/sfx", map[string]any{
		"prompt": "gentle rain", "duration_seconds": 5.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
