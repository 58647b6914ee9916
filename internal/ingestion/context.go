package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/llmjson"
)

// DefaultExemplarCount is K in §4.3 S3: the number of anchor faces per
// Person. GenerateContext does not use it; its text-only prompt lists anchor
// names, not exemplar images (see exemplarAnchors).
const DefaultExemplarCount = 3

// DefaultContextConcurrency bounds how many per-file LLM description calls
// run at once within one event folder.
const DefaultContextConcurrency = 2

type contextLLMResponse struct {
	Description string   `json:"description"`
	People      []string `json:"people"`
}

// GenerateContext runs S3: for every file in an event folder, ask the LLM
// for a description plus which anchor names appear, restricting the
// allowed label set to the anchors plus "unknown". Per-file failures are
// logged and the file is recorded with an empty description rather than
// aborting the folder.
func GenerateContext(ctx context.Context, llm adapters.LLM, storage adapters.ObjectStorage, bucket, eventName string, fileKeys []string, people []domain.Person, concurrency int, logger *zap.Logger) (domain.ContextFile, error) {
	if concurrency <= 0 {
		concurrency = DefaultContextConcurrency
	}
	anchors := exemplarAnchors(people)

	cf := domain.ContextFile{
		Files: make(map[string]domain.ContextFileEntry, len(fileKeys)),
	}

	var mu sync.Mutex
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	for _, key := range fileKeys {
		key := key
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer sem.Release(1)
			defer wg.Done()

			entry := describeFile(ctx, llm, storage, bucket, key, anchors, logger, eventName)
			normalizedKey := normalizeFileKey(key)

			mu.Lock()
			cf.Files[normalizedKey] = entry
			mu.Unlock()
		}()
	}
	wg.Wait()

	cf.MemoryContext = summarizeEvent(eventName, cf.Files)
	return cf, nil
}

func describeFile(ctx context.Context, llm adapters.LLM, storage adapters.ObjectStorage, bucket, key string, anchors []string, logger *zap.Logger, eventName string) domain.ContextFileEntry {
	// The LLM adapter's Generate contract (§4.1) is text-only; the media
	// bytes confirm the file is readable before we spend a call on it, and
	// a multimodal-capable implementation would attach them to the request.
	if _, err := storage.GetBytes(ctx, bucket, key); err != nil {
		logger.Warn("ingestion: context generation could not read file", zap.String("event", eventName), zap.String("file", key), zap.Error(err))
		return domain.ContextFileEntry{}
	}

	prompt := buildContextPrompt(anchors)
	raw, err := llm.Generate(ctx, prompt, 0.2, 200)
	if err != nil {
		logger.Warn("ingestion: context generation LLM call failed", zap.String("event", eventName), zap.String("file", key), zap.Error(err))
		return domain.ContextFileEntry{}
	}

	var resp contextLLMResponse
	if err := llmjson.ParseObject(raw, &resp); err != nil {
		logger.Warn("ingestion: context generation unparsable response", zap.String("event", eventName), zap.String("file", key), zap.Error(err))
		return domain.ContextFileEntry{}
	}

	return domain.ContextFileEntry{
		Description: strings.TrimSpace(resp.Description),
		People:      restrictToAnchors(resp.People, anchors),
	}
}

func buildContextPrompt(anchors []string) string {
	var b strings.Builder
	b.WriteString("=== INSTRUCTION ===\n")
	b.WriteString("Describe this media file in one or two warm, concrete sentences.\n")
	b.WriteString("Then list which of the following known people appear, using \"unknown\" for anyone else.\n")
	b.WriteString("=== KNOWN PEOPLE ===\n")
	if len(anchors) == 0 {
		b.WriteString("(none known yet)\n")
	} else {
		b.WriteString(strings.Join(anchors, ", "))
		b.WriteString("\n")
	}
	b.WriteString("=== OUTPUT ===\n")
	b.WriteString(fmt.Sprintf("Respond with JSON only: {\"description\": \"...\", \"people\": [%s]}", exampleLabel(anchors)))
	return b.String()
}

func exampleLabel(anchors []string) string {
	if len(anchors) == 0 {
		return `"unknown"`
	}
	return fmt.Sprintf(`"%s" or "unknown"`, anchors[0])
}

// restrictToAnchors forbids the LLM from inventing new names: anything not
// in the anchor set collapses to "unknown", matching the prompt's escape.
func restrictToAnchors(claimed []string, anchors []string) []string {
	allowed := make(map[string]bool, len(anchors))
	for _, a := range anchors {
		allowed[strings.ToLower(a)] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, name := range claimed {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" || lower == "unknown" {
			continue
		}
		if !allowed[lower] {
			continue
		}
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
	}
	return out
}

// exemplarAnchors lists the names of people who have at least one face
// exemplar on file. DefaultExemplarCount (how many exemplar images would be
// shown per person) is a prompt-construction detail for a multimodal LLM
// call and doesn't affect which names are eligible anchors.
func exemplarAnchors(people []domain.Person) []string {
	names := make([]string, 0, len(people))
	for _, p := range people {
		if len(p.FaceExemplars) == 0 {
			continue
		}
		names = append(names, p.Name)
	}
	return names
}

func summarizeEvent(eventName string, files map[string]domain.ContextFileEntry) string {
	peopleSet := make(map[string]bool)
	for _, entry := range files {
		for _, p := range entry.People {
			peopleSet[p] = true
		}
	}
	if len(peopleSet) == 0 {
		return eventName
	}
	names := make([]string, 0, len(peopleSet))
	for name := range peopleSet {
		names = append(names, name)
	}
	return eventName + " with " + strings.Join(names, ", ")
}

// normalizeFileKey derives the canonical ContextFile key for a raw
// object-storage key or filename: strip any path, strip the extension, then
// apply normalizeSpacing. This is the "<normalized_filename_without_extension>"
// half of §3's `<...>_context`/`<...>_people` key scheme.
func normalizeFileKey(key string) string {
	base := path.Base(key)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return normalizeSpacing(base)
}

// normalizeSpacing collapses narrow/non-breaking spaces to ordinary spaces
// and lower-cases, the comparison rule §3 requires on ContextFile key
// lookup, so caregiver-supplied filenames compare equal regardless of how
// their editor encoded whitespace.
func normalizeSpacing(s string) string {
	replacer := strings.NewReplacer(
		" ", " ", // non-breaking space
		" ", " ", // narrow no-break space
		" ", " ", // thin space
	)
	return strings.ToLower(replacer.Replace(s))
}

const (
	contextKeyName   = "memory_context"
	contextKeySuffix = "_context"
	peopleKeySuffix  = "_people"
)

// MarshalContextFile serializes a ContextFile into §3's flat bit-exact
// shape: one top-level "memory_context" key plus, per file,
// "<name>_context" and "<name>_people" keys -- no nesting.
func MarshalContextFile(cf domain.ContextFile) ([]byte, error) {
	flat := make(map[string]any, 1+2*len(cf.Files))
	flat[contextKeyName] = cf.MemoryContext
	for key, entry := range cf.Files {
		flat[key+contextKeySuffix] = entry.Description
		flat[key+peopleKeySuffix] = entry.People
	}
	return json.MarshalIndent(flat, "", "  ")
}

// UnmarshalContextFile parses a previously persisted context.json back out
// of §3's flat key scheme into the internal per-file map, re-normalizing
// each key's base name so lookups by normalizeFileKey succeed regardless of
// how the stored key's whitespace was encoded (see E6).
func UnmarshalContextFile(data []byte) (domain.ContextFile, error) {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return domain.ContextFile{}, fmt.Errorf("unmarshal context file: %w", err)
	}

	cf := domain.ContextFile{Files: make(map[string]domain.ContextFileEntry)}
	descriptions := make(map[string]string)
	peopleLists := make(map[string][]string)

	for rawKey, rawVal := range flat {
		switch {
		case rawKey == contextKeyName:
			if err := json.Unmarshal(rawVal, &cf.MemoryContext); err != nil {
				return domain.ContextFile{}, fmt.Errorf("unmarshal %s: %w", contextKeyName, err)
			}
		case strings.HasSuffix(rawKey, contextKeySuffix):
			base := normalizeSpacing(strings.TrimSuffix(rawKey, contextKeySuffix))
			var description string
			if err := json.Unmarshal(rawVal, &description); err != nil {
				return domain.ContextFile{}, fmt.Errorf("unmarshal %s: %w", rawKey, err)
			}
			descriptions[base] = description
		case strings.HasSuffix(rawKey, peopleKeySuffix):
			base := normalizeSpacing(strings.TrimSuffix(rawKey, peopleKeySuffix))
			var people []string
			if err := json.Unmarshal(rawVal, &people); err != nil {
				return domain.ContextFile{}, fmt.Errorf("unmarshal %s: %w", rawKey, err)
			}
			peopleLists[base] = people
		}
	}

	for base, description := range descriptions {
		cf.Files[base] = domain.ContextFileEntry{Description: description, People: peopleLists[base]}
	}
	for base, people := range peopleLists {
		if _, ok := cf.Files[base]; !ok {
			cf.Files[base] = domain.ContextFileEntry{People: people}
		}
	}
	return cf, nil
}
