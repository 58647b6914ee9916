package http

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ready(context.Context) error { return f.err }

func setupHealthRouter(pinger *fakePinger) *gin.Engine {
	r := gin.New()
	h := NewHealthHandler(pinger)
	r.GET("/healthz", h.Healthz)
	return r
}

func TestHealthHandler_Healthz_Ready(t *testing.T) {
	r := setupHealthRouter(&fakePinger{})

	rec := performRequest(r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthHandler_Healthz_NotReady(t *testing.T) {
	r := setupHealthRouter(&fakePinger{err: errors.New("vault unreachable")})

	rec := performRequest(r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
