package experience

import (
	"context"
	"errors"
	"testing"

	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/domain"
)

type fakeRetriever struct {
	results map[string]domain.RetrievalResult
	errs    map[string]error
}

func (f fakeRetriever) Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error) {
	if err, ok := f.errs[query]; ok {
		return domain.RetrievalResult{}, err
	}
	if r, ok := f.results[query]; ok {
		return r, nil
	}
	return domain.RetrievalResult{Query: query}, nil
}

type fakeNarrator struct {
	err error
}

func (f fakeNarrator) Narrate(ctx context.Context, query string, retrieved []domain.ScoredMemory, historySlice []domain.ConversationTurn, antiRepeatList []string, style string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "a lovely memory about " + query, nil
}

type fakeStore struct {
	saved map[string]domain.Experience
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]domain.Experience)}
}

func (f *fakeStore) Save(ctx context.Context, exp domain.Experience) error {
	f.saved[exp.ExperienceID] = exp
	return nil
}

func (f *fakeStore) Get(ctx context.Context, experienceID string) (domain.Experience, error) {
	exp, ok := f.saved[experienceID]
	if !ok {
		return domain.Experience{}, errors.New("not found")
	}
	return exp, nil
}

func (f *fakeStore) GetByTopic(ctx context.Context, title string) (domain.Experience, error) {
	for _, exp := range f.saved {
		if exp.Title == title {
			return exp, nil
		}
	}
	return domain.Experience{}, errors.New("not found")
}

func (f *fakeStore) List(ctx context.Context) ([]domain.Experience, error) {
	out := make([]domain.Experience, 0, len(f.saved))
	for _, exp := range f.saved {
		out = append(out, exp)
	}
	return out, nil
}

func TestComposer_Compose_HappyPath(t *testing.T) {
	retriever := fakeRetriever{results: map[string]domain.RetrievalResult{
		"grandma's garden": {Memories: []domain.ScoredMemory{
			{MemoryRecord: domain.MemoryRecord{ID: "m1"}, Similarity: 0.9},
		}},
		"the rose bushes": {Memories: []domain.ScoredMemory{
			{MemoryRecord: domain.MemoryRecord{ID: "m2"}, Similarity: 0.8},
		}},
	}}
	store := newFakeStore()
	composer := NewComposer(retriever, fakeNarrator{}, store)

	exp, err := composer.Compose(context.Background(), Request{
		Title:          "Garden Memories",
		GeneralContext: "grandma's garden",
		Scenes:         []string{"the rose bushes"},
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if exp.ExperienceID == "" {
		t.Fatalf("expected a generated experience id")
	}
	if exp.TotalMemories != 2 {
		t.Fatalf("expected 2 unique memories, got %d", exp.TotalMemories)
	}
	if exp.PatientURL() != "/patient/experience/"+exp.ExperienceID {
		t.Fatalf("unexpected patient url: %s", exp.PatientURL())
	}
	if _, ok := store.saved[exp.ExperienceID]; !ok {
		t.Fatalf("expected experience to be persisted")
	}
}

func TestComposer_Compose_TolerateSingleSceneFailure(t *testing.T) {
	retriever := fakeRetriever{
		errs: map[string]error{"broken scene": errors.New("vault down")},
		results: map[string]domain.RetrievalResult{
			"ok scene": {Memories: []domain.ScoredMemory{{MemoryRecord: domain.MemoryRecord{ID: "m1"}}}},
		},
	}
	store := newFakeStore()
	composer := NewComposer(retriever, fakeNarrator{}, store)

	exp, err := composer.Compose(context.Background(), Request{
		Title:          "Mixed",
		GeneralContext: "general",
		Scenes:         []string{"broken scene", "ok scene"},
	})
	if err != nil {
		t.Fatalf("expected partial success, got error: %v", err)
	}
	if len(exp.Scenes) != 2 {
		t.Fatalf("expected both scenes present, got %d", len(exp.Scenes))
	}
	var brokenScene domain.SceneResult
	for _, s := range exp.Scenes {
		if s.Scene == "broken scene" {
			brokenScene = s
		}
	}
	if len(brokenScene.Memories) != 0 {
		t.Fatalf("expected broken scene to have no memories")
	}
	if brokenScene.AINarrative == "" {
		t.Fatalf("expected template fallback narrative for broken scene")
	}
}

func TestComposer_Compose_AllScenesFailReturnsComposeFailed(t *testing.T) {
	retriever := fakeRetriever{errs: map[string]error{
		"scene a": errors.New("down"),
		"scene b": errors.New("down"),
	}}
	store := newFakeStore()
	composer := NewComposer(retriever, fakeNarrator{}, store)

	_, err := composer.Compose(context.Background(), Request{
		Title:          "All Broken",
		GeneralContext: "general",
		Scenes:         []string{"scene a", "scene b"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if apperr.KindOf(err) != apperr.KindComposeFailed {
		t.Fatalf("expected compose_failed, got %v", apperr.KindOf(err))
	}
}

func TestComposer_GetAndGetByTopic(t *testing.T) {
	store := newFakeStore()
	composer := NewComposer(fakeRetriever{}, fakeNarrator{}, store)

	exp, err := composer.Compose(context.Background(), Request{Title: "Beach Day", GeneralContext: "beach"})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	got, err := composer.Get(context.Background(), exp.ExperienceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Beach Day" {
		t.Fatalf("unexpected title: %s", got.Title)
	}

	byTopic, err := composer.GetByTopic(context.Background(), "Beach Day")
	if err != nil {
		t.Fatalf("get by topic: %v", err)
	}
	if byTopic.ExperienceID != exp.ExperienceID {
		t.Fatalf("expected same experience by topic lookup")
	}
}
