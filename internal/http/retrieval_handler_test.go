package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/domain"
)

type fakeRetriever struct {
	result domain.RetrievalResult
	err    error
	lastK  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error) {
	f.lastK = k
	return f.result, f.err
}

func setupRetrievalRouter(engine *fakeRetriever) *gin.Engine {
	r := gin.New()
	h := NewRetrievalHandler(zap.NewNop(), engine)
	r.POST("/retrieval/search", h.SearchPost)
	r.GET("/retrieval/search", h.SearchGet)
	return r
}

func TestRetrievalHandler_SearchPost_Success(t *testing.T) {
	engine := &fakeRetriever{result: domain.RetrievalResult{
		Query: "the beach trip", ModelUsed: "gpt-5.1", AnswerText: "You went to the beach.",
	}}
	r := setupRetrievalRouter(engine)

	rec := performRequest(r, http.MethodPost, "/retrieval/search", map[string]any{
		"query": "the beach trip", "k": 5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if engine.lastK != 5 {
		t.Fatalf("expected k=5 to reach the engine, got %d", engine.lastK)
	}
}

func TestRetrievalHandler_SearchPost_MissingQuery(t *testing.T) {
	r := setupRetrievalRouter(&fakeRetriever{})

	rec := performRequest(r, http.MethodPost, "/retrieval/search", map[string]any{"k": 5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRetrievalHandler_SearchGet_UsesQueryParams(t *testing.T) {
	engine := &fakeRetriever{}
	r := setupRetrievalRouter(engine)

	req, _ := http.NewRequest(http.MethodGet, "/retrieval/search?query=picnic&k=3", nil)
	rec := performRawRequest(r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if engine.lastK != 3 {
		t.Fatalf("expected k=3, got %d", engine.lastK)
	}
}
