// Package retrieval implements the Retrieval Engine (C4): a cache-checked
// wrapper over the Memory Vault that enforces a similarity floor with a
// minimum-results guarantee and a deterministic sort order.
package retrieval

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/cache"
	"github.com/forgetmenot/remind/internal/domain"
)

const (
	DefaultSimilarityFloor = 0.30
	DefaultMinResults      = 3
	ModelUsedLabel         = "vault-pgvector-cosine"
)

// VaultSearcher is the subset of vault.Store the Retrieval Engine needs.
type VaultSearcher interface {
	Search(ctx context.Context, queryText string, k int, filter domain.Filter) ([]domain.ScoredMemory, error)
}

// Engine is the Retrieval Engine.
type Engine struct {
	vault          VaultSearcher
	cacheStore     cache.Store
	similarityFloor float64
	minResults     int
}

func NewEngine(vault VaultSearcher, cacheStore cache.Store) *Engine {
	return &Engine{
		vault:           vault,
		cacheStore:      cacheStore,
		similarityFloor: DefaultSimilarityFloor,
		minResults:      DefaultMinResults,
	}
}

// WithThresholds overrides the similarity floor / min-results defaults.
func (e *Engine) WithThresholds(floor float64, minResults int) *Engine {
	if floor > 0 {
		e.similarityFloor = floor
	}
	if minResults > 0 {
		e.minResults = minResults
	}
	return e
}

func filterCanonical(f domain.Filter) string {
	people := append([]string(nil), f.People...)
	sort.Strings(people)
	raw, _ := json.Marshal(struct {
		EventName string   `json:"event_name"`
		People    []string `json:"people"`
	}{EventName: f.EventName, People: people})
	return string(raw)
}

// Retrieve runs the cache-checked, floor-filtered, deterministically sorted
// similarity search described by the Retrieval Engine contract.
func (e *Engine) Retrieve(ctx context.Context, query string, k int, filter domain.Filter) (domain.RetrievalResult, error) {
	if k <= 0 {
		k = 5
	}
	cacheKey := cache.Key(cache.NormalizeTopic(query), k, filterCanonical(filter))

	if e.cacheStore != nil {
		if raw, ok, err := e.cacheStore.Get(ctx, cacheKey); err == nil && ok {
			var cached domain.RetrievalResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	memories, err := e.vault.Search(ctx, query, k, filter)
	if err != nil {
		return domain.RetrievalResult{}, apperr.RetrievalUnavailable("vault search failed", err)
	}

	memories = applyFloor(memories, e.similarityFloor, e.minResults)
	sortDeterministic(memories)

	result := domain.RetrievalResult{
		Query:     query,
		Memories:  memories,
		ModelUsed: ModelUsedLabel,
	}

	if e.cacheStore != nil {
		if raw, err := json.Marshal(result); err == nil {
			_ = e.cacheStore.Set(ctx, cacheKey, raw, cache.DefaultTTL)
		}
	}

	return result, nil
}

// applyFloor drops memories below the similarity floor, unless doing so
// would leave fewer than minResults — in that case the top minResults
// (by the already-descending vault order) are kept regardless of floor.
func applyFloor(memories []domain.ScoredMemory, floor float64, minResults int) []domain.ScoredMemory {
	var kept []domain.ScoredMemory
	for _, m := range memories {
		if m.Similarity >= floor {
			kept = append(kept, m)
		}
	}
	if len(kept) >= minResults {
		return kept
	}
	if len(memories) <= minResults {
		return memories
	}
	return memories[:minResults]
}

// sortDeterministic sorts descending by similarity, tie-breaking by
// event_name then file_name ascending so equal-similarity results always
// land in the same order.
func sortDeterministic(memories []domain.ScoredMemory) {
	sort.SliceStable(memories, func(i, j int) bool {
		a, b := memories[i], memories[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.EventName != b.EventName {
			return a.EventName < b.EventName
		}
		return a.FileName < b.FileName
	})
}
