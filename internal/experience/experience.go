// Package experience implements the Experience Composer (C8): a therapist-
// authored bundle of scenes, each independently retrieved and narrated, with
// per-scene failure tolerated and only a total wipeout treated as fatal.
package experience

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/narration"
)

// Retriever is the subset of retrieval.Engine the Composer depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error)
}

// Storyteller is the subset of narration.Narrator the Composer depends on.
type Storyteller interface {
	Narrate(ctx context.Context, query string, retrieved []domain.ScoredMemory, historySlice []domain.ConversationTurn, antiRepeatList []string, style string) (string, error)
}

const DefaultTopK = 5

// Request is the Compose contract's input.
type Request struct {
	Title          string
	GeneralContext string
	Scenes         []string
	TopK           int
}

// Composer is the Experience Composer.
type Composer struct {
	retrieval Retriever
	narrator  Storyteller
	store     Store
}

func NewComposer(retrieval Retriever, narrator Storyteller, store Store) *Composer {
	return &Composer{retrieval: retrieval, narrator: narrator, store: store}
}

// Compose runs the §4.8 algorithm: seed the overall narrative, retrieve and
// narrate each scene independently, tolerate per-scene failure, and persist.
func (c *Composer) Compose(ctx context.Context, req Request) (domain.Experience, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	uniqueIDs := make(map[string]struct{})

	overallResult, overallErr := c.retrieval.Retrieve(ctx, req.GeneralContext, topK, domain.Filter{})
	var overallNarrative string
	if overallErr == nil {
		for _, m := range overallResult.Memories {
			uniqueIDs[m.ID] = struct{}{}
		}
		if text, err := c.narrator.Narrate(ctx, req.GeneralContext, overallResult.Memories, nil, nil, "overview"); err == nil {
			overallNarrative = text
		}
	}
	if overallNarrative == "" {
		overallNarrative = narration.TemplateFallback(req.Title, req.GeneralContext)
	}

	scenes := make([]domain.SceneResult, 0, len(req.Scenes))
	successfulScenes := 0
	for _, scene := range req.Scenes {
		sceneResult, err := c.retrieval.Retrieve(ctx, scene, topK, domain.Filter{})
		if err != nil {
			scenes = append(scenes, domain.SceneResult{
				Scene:       scene,
				Memories:    nil,
				AINarrative: narration.TemplateFallback(scene, ""),
			})
			continue
		}
		successfulScenes++
		for _, m := range sceneResult.Memories {
			uniqueIDs[m.ID] = struct{}{}
		}

		aiNarrative, narrErr := c.narrator.Narrate(ctx, scene, sceneResult.Memories, nil, nil, scene)
		if narrErr != nil {
			topDescription := ""
			if len(sceneResult.Memories) > 0 {
				topDescription = sceneResult.Memories[0].Description
			}
			aiNarrative = narration.TemplateFallback(scene, topDescription)
		}

		scenes = append(scenes, domain.SceneResult{
			Scene:       scene,
			Memories:    sceneResult.Memories,
			AINarrative: aiNarrative,
		})
	}

	if len(req.Scenes) > 0 && successfulScenes == 0 {
		return domain.Experience{}, apperr.ComposeFailed("every scene failed to retrieve")
	}

	exp := domain.Experience{
		ExperienceID:     uuid.New().String(),
		Title:            req.Title,
		GeneralContext:   req.GeneralContext,
		Scenes:           scenes,
		OverallNarrative: overallNarrative,
		TotalMemories:    len(uniqueIDs),
		CreatedAt:        time.Now().UTC(),
	}

	if err := c.store.Save(ctx, exp); err != nil {
		return domain.Experience{}, apperr.ComposeFailed("persist experience: " + err.Error())
	}

	return exp, nil
}

func (c *Composer) Get(ctx context.Context, experienceID string) (domain.Experience, error) {
	return c.store.Get(ctx, experienceID)
}

func (c *Composer) GetByTopic(ctx context.Context, title string) (domain.Experience, error) {
	return c.store.GetByTopic(ctx, title)
}

func (c *Composer) List(ctx context.Context) ([]domain.Experience, error) {
	return c.store.List(ctx)
}
