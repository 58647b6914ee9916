// Package narration implements the Narration Builder (C6): prompt assembly
// in the teacher's section-header style, plus a post-filter that trims to a
// target length and retries once against near-duplicate output before
// returning it anyway, since an imperfect answer serves the patient better
// than an error.
package narration

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/domain"
)

const (
	generationTemperature = 0.9
	maxGenerationTokens   = 400
	minWords              = 60
	maxWords              = 120
	duplicateOverlap      = 0.80
)

// Narrator is the Narration Builder.
type Narrator struct {
	llm adapters.LLM
}

func NewNarrator(llm adapters.LLM) *Narrator {
	return &Narrator{llm: llm}
}

// Narrate runs the C6 contract: build the prompt, generate, trim, and retry
// once against near-duplicate output.
func (n *Narrator) Narrate(ctx context.Context, query string, retrieved []domain.ScoredMemory, historySlice []domain.ConversationTurn, antiRepeatList []string, style string) (string, error) {
	prompt := buildPrompt(query, retrieved, historySlice, antiRepeatList, style, false)
	text, err := n.llm.Generate(ctx, prompt, generationTemperature, maxGenerationTokens)
	if err != nil {
		return "", apperr.NarrationUnavailable("generate narration", err)
	}
	trimmed := trimToWordRange(text)

	if isNearDuplicate(trimmed, antiRepeatList) {
		retryPrompt := buildPrompt(query, retrieved, historySlice, antiRepeatList, style, true)
		retryText, retryErr := n.llm.Generate(ctx, retryPrompt, generationTemperature, maxGenerationTokens)
		if retryErr == nil {
			trimmed = trimToWordRange(retryText)
		}
	}

	return trimmed, nil
}

// TemplateFallback is the deterministic substitute a caller may use when
// NarrationUnavailable is returned: it lists the event name and the best
// available description with no invented detail.
func TemplateFallback(eventName string, topDescription string) string {
	eventName = strings.TrimSpace(eventName)
	topDescription = strings.TrimSpace(topDescription)
	switch {
	case eventName != "" && topDescription != "":
		return fmt.Sprintf("This is from %s. %s", eventName, topDescription)
	case eventName != "":
		return fmt.Sprintf("This is from %s.", eventName)
	case topDescription != "":
		return topDescription
	default:
		return "I found a memory, but I can't describe it right now."
	}
}

func buildPrompt(query string, retrieved []domain.ScoredMemory, historySlice []domain.ConversationTurn, antiRepeatList []string, style string, strongAntiRepeat bool) string {
	var b strings.Builder

	b.WriteString("=== INSTRUCTION ===\n")
	b.WriteString("Speak warmly, in the second person, to a memory-care patient recalling a cherished moment. ")
	b.WriteString("Never invent facts beyond what is given below. Never mention being an AI or a system.\n\n")

	if strings.TrimSpace(style) != "" {
		b.WriteString("=== STYLE ===\n")
		b.WriteString(style)
		b.WriteString("\n\n")
	}

	b.WriteString("=== GROUNDING ===\n")
	if len(retrieved) == 0 {
		b.WriteString("(no grounding memories available)\n\n")
	} else {
		for _, m := range retrieved {
			people := strings.Join(m.People, ", ")
			b.WriteString(fmt.Sprintf("- %s | %s | people: %s\n", m.EventSummary, m.Description, people))
		}
		b.WriteString("\n")
	}

	if len(historySlice) > 0 {
		b.WriteString("=== RECENT CONVERSATION ===\n")
		start := 0
		if len(historySlice) > 6 {
			start = len(historySlice) - 6
		}
		for _, t := range historySlice[start:] {
			b.WriteString(fmt.Sprintf("- %s: %s\n", t.Role, t.Message))
		}
		b.WriteString("\n")
	}

	if len(antiRepeatList) > 0 {
		b.WriteString("=== ANTI-REPETITION ===\n")
		b.WriteString("Do not repeat or paraphrase the following:\n")
		start := 0
		if len(antiRepeatList) > 3 {
			start = len(antiRepeatList) - 3
		}
		for _, prior := range antiRepeatList[start:] {
			b.WriteString("- ")
			b.WriteString(prior)
			b.WriteString("\n")
		}
		if strongAntiRepeat {
			b.WriteString("Your previous attempt repeated one of these too closely. Use different wording, different sentence structure, and a different opening line.\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("=== QUERY ===\n")
	b.WriteString(query)
	b.WriteString("\n\n")

	b.WriteString("=== OUTPUT ===\n")
	b.WriteString("Respond with a warm narration of 60-120 words. Plain text only, no JSON, no lists.\n")

	return b.String()
}

// trimToWordRange trims text to at most maxWords whole words; text shorter
// than minWords is returned unchanged, since padding would invent content.
func trimToWordRange(text string) string {
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) <= maxWords {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[:maxWords], " ")
}

// isNearDuplicate reports whether text overlaps any prior entry by at least
// duplicateOverlap on a word-multiset basis.
func isNearDuplicate(text string, priors []string) bool {
	textWords := wordMultiset(text)
	if len(textWords) == 0 {
		return false
	}
	for _, prior := range priors {
		priorWords := wordMultiset(prior)
		if len(priorWords) == 0 {
			continue
		}
		overlap := multisetOverlap(textWords, priorWords)
		smaller := len(textWords)
		if len(priorWords) < smaller {
			smaller = len(priorWords)
		}
		if smaller == 0 {
			continue
		}
		if float64(overlap)/float64(smaller) >= duplicateOverlap {
			return true
		}
	}
	return false
}

func wordMultiset(s string) map[string]int {
	out := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w]++
	}
	return out
}

func multisetOverlap(a, b map[string]int) int {
	total := 0
	for w, countA := range a {
		countB := b[w]
		if countB < countA {
			total += countB
		} else {
			total += countA
		}
	}
	return total
}
