package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/history"
)

func setupHistoryRouter(store history.Store) *gin.Engine {
	r := gin.New()
	h := NewHistoryHandler(zap.NewNop(), store)
	r.GET("/history", h.Get)
	r.GET("/history/stats", h.Stats)
	r.POST("/history/reset", h.Reset)
	r.GET("/history/export", h.Export)
	return r
}

func TestHistoryHandler_Get_RequiresPatientAndTopic(t *testing.T) {
	store := history.NewInMemoryStore(history.DefaultWindowTurns, time.Hour)
	r := setupHistoryRouter(store)

	rec := performRequest(r, http.MethodGet, "/history", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHistoryHandler_Get_ReturnsAppendedTurns(t *testing.T) {
	store := history.NewInMemoryStore(history.DefaultWindowTurns, time.Hour)
	_ = store.Append(nil, "p1", "picnic", domain.RolePatient, "tell me about the picnic")
	_ = store.Append(nil, "p1", "picnic", domain.RoleAgent, "you had a lovely picnic")
	r := setupHistoryRouter(store)

	rec := performRequest(r, http.MethodGet, "/history?patient_id=p1&topic=picnic", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(rec)
	turns, ok := body["turns"].([]any)
	if !ok || len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %v", body["turns"])
	}
}

func TestHistoryHandler_Stats_ReportsRoleCounts(t *testing.T) {
	store := history.NewInMemoryStore(history.DefaultWindowTurns, time.Hour)
	_ = store.Append(nil, "p1", "picnic", domain.RolePatient, "hi")
	_ = store.Append(nil, "p1", "picnic", domain.RoleAgent, "hello")
	_ = store.Append(nil, "p1", "picnic", domain.RoleAgent, "how are you")
	r := setupHistoryRouter(store)

	rec := performRequest(r, http.MethodGet, "/history/stats?patient_id=p1&topic=picnic", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(rec)
	if body["patient_turns"] != float64(1) || body["agent_turns"] != float64(2) {
		t.Fatalf("unexpected stats: %+v", body)
	}
}

func TestHistoryHandler_Reset_ClearsTheKey(t *testing.T) {
	store := history.NewInMemoryStore(history.DefaultWindowTurns, time.Hour)
	_ = store.Append(nil, "p1", "picnic", domain.RolePatient, "hi")
	r := setupHistoryRouter(store)

	rec := performRequest(r, http.MethodPost, "/history/reset?patient_id=p1&topic=picnic", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = performRequest(r, http.MethodGet, "/history/export?patient_id=p1&topic=picnic", nil)
	body := decodeBody(rec)
	turns, _ := body["turns"].([]any)
	if len(turns) != 0 {
		t.Fatalf("expected reset to clear the log, got %v", body["turns"])
	}
}
