// Package classifier implements the Intent/Display Classifier (C5): a rule
// cascade that only reaches for the LLM when the utterance doesn't already
// say what it wants, falling back to a fully deterministic pick if the LLM
// call fails or returns something outside the enumerated label set.
package classifier

import (
	"context"
	"strings"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/llmjson"
)

var agentDesirePhrases = []string{
	"talk to", "talk with", "speak to", "speak with", "ask ",
	"what would", "i want to hear", "i wanna hear", "hablar con",
	"quiero escuchar", "que diria", "qué diría",
}

var videoKeywords = []string{"video", "clip", "footage", "recording"}

var pictureKeywords = []string{"picture", "pictures", "photo", "photos", "pic", "pics", "image", "images"}

// Classify runs the C5 rule cascade and returns the chosen mode plus a short
// rationale string intended for logs only, never shown to the patient.
func Classify(ctx context.Context, utterance string, inventory domain.MediaInventory, people []domain.Person, llm adapters.LLM) (domain.DisplayMode, string) {
	lower := strings.ToLower(utterance)

	if mode, rationale, ok := matchAgentDesire(lower, people); ok {
		return enforceArity(mode, inventory), rationale
	}

	if mode, rationale, ok := matchExplicitMediaKind(lower, inventory); ok {
		return enforceArity(mode, inventory), rationale
	}

	if llm != nil {
		if mode, ok := classifyViaLLM(ctx, llm, utterance, inventory); ok {
			return enforceArity(mode, inventory), "llm_classifier"
		}
	}

	return enforceArity(deterministicFallback(inventory, people), inventory), "deterministic_fallback"
}

func matchAgentDesire(lowerUtterance string, people []domain.Person) (domain.DisplayMode, string, bool) {
	wantsAgent := false
	for _, phrase := range agentDesirePhrases {
		if strings.Contains(lowerUtterance, phrase) {
			wantsAgent = true
			break
		}
	}
	if !wantsAgent {
		return "", "", false
	}
	for _, p := range people {
		if !p.HasVoiceClone() {
			continue
		}
		if strings.Contains(lowerUtterance, strings.ToLower(p.Name)) ||
			(p.DisplayName != "" && strings.Contains(lowerUtterance, strings.ToLower(p.DisplayName))) {
			return domain.ModeAgent, "named_person_with_voice_clone", true
		}
	}
	return "", "", false
}

func matchExplicitMediaKind(lowerUtterance string, inventory domain.MediaInventory) (domain.DisplayMode, string, bool) {
	for _, kw := range videoKeywords {
		if strings.Contains(lowerUtterance, kw) {
			if inventory.HasVerticalVideo {
				return domain.ModeVerticalVideo, "explicit_video_request_vertical", true
			}
			return domain.ModeVideo, "explicit_video_request", true
		}
	}
	for _, kw := range pictureKeywords {
		if strings.Contains(lowerUtterance, kw) {
			n := inventory.Images
			if n < 3 {
				return domain.ModeVideo, "explicit_picture_request_insufficient_images", true
			}
			if n > 5 {
				n = 5
			}
			switch n {
			case 5:
				return domain.ModeFivePics, "explicit_picture_request", true
			case 4:
				return domain.ModeFourPics, "explicit_picture_request", true
			default:
				return domain.ModeThreePics, "explicit_picture_request", true
			}
		}
	}
	return "", "", false
}

type classifyResponse struct {
	DisplayMode string `json:"display_mode"`
}

var validLabels = map[string]domain.DisplayMode{
	"three_pics":     domain.ModeThreePics,
	"four_pics":      domain.ModeFourPics,
	"five_pics":      domain.ModeFivePics,
	"video":          domain.ModeVideo,
	"vertical_video": domain.ModeVerticalVideo,
	"agent":          domain.ModeAgent,
}

func classifyViaLLM(ctx context.Context, llm adapters.LLM, utterance string, inventory domain.MediaInventory) (domain.DisplayMode, bool) {
	prompt := buildClassifyPrompt(utterance, inventory)
	raw, err := llm.Generate(ctx, prompt, 0.0, 60)
	if err != nil {
		return "", false
	}

	var resp classifyResponse
	if err := llmjson.ParseObject(raw, &resp); err == nil {
		if mode, ok := validLabels[strings.TrimSpace(resp.DisplayMode)]; ok {
			return mode, true
		}
	}
	if label, ok := llmjson.ExtractField(raw, "display_mode"); ok {
		if mode, ok := validLabels[strings.TrimSpace(label)]; ok {
			return mode, true
		}
	}
	return "", false
}

func buildClassifyPrompt(utterance string, inventory domain.MediaInventory) string {
	var b strings.Builder
	b.WriteString("Classify the following patient utterance into exactly one of these labels:\n")
	b.WriteString("three_pics, four_pics, five_pics, video, vertical_video, agent\n\n")
	b.WriteString("Utterance: ")
	b.WriteString(utterance)
	b.WriteString("\n")
	b.WriteString("Available media: ")
	b.WriteString(itoa(inventory.Images))
	b.WriteString(" images, ")
	b.WriteString(itoa(inventory.Videos))
	b.WriteString(" videos")
	if inventory.HasVerticalVideo {
		b.WriteString(" (a vertical video is available)")
	}
	b.WriteString(".\n\nRespond with JSON only: {\"display_mode\": \"<one label>\"}")
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// deterministicFallback implements rule 4: video when any video exists,
// else four_pics when >=4 images, else three_pics when >=3 images, else
// agent. The last case returns agent whether or not any person has a
// voice clone.
func deterministicFallback(inventory domain.MediaInventory, people []domain.Person) domain.DisplayMode {
	if inventory.Videos > 0 {
		if inventory.HasVerticalVideo {
			return domain.ModeVerticalVideo
		}
		return domain.ModeVideo
	}
	if inventory.Images >= 4 {
		return domain.ModeFourPics
	}
	if inventory.Images >= 3 {
		return domain.ModeThreePics
	}
	for _, p := range people {
		if p.HasVoiceClone() {
			return domain.ModeAgent
		}
	}
	return domain.ModeAgent
}

// DeterministicNonAgent applies the same video/four_pics/three_pics ladder
// as the deterministic fallback but never returns agent, for callers that
// have already tried and failed to resolve an agent-mode target person.
func DeterministicNonAgent(inventory domain.MediaInventory) domain.DisplayMode {
	if inventory.Videos > 0 {
		if inventory.HasVerticalVideo {
			return domain.ModeVerticalVideo
		}
		return domain.ModeVideo
	}
	if inventory.Images >= 4 {
		return domain.ModeFourPics
	}
	return domain.ModeThreePics
}

// enforceArity walks a pics-family mode down to the next size the available
// image count can actually satisfy.
func enforceArity(mode domain.DisplayMode, inventory domain.MediaInventory) domain.DisplayMode {
	switch mode {
	case domain.ModeFivePics:
		if inventory.Images >= 5 {
			return mode
		}
		return enforceArity(domain.ModeFourPics, inventory)
	case domain.ModeFourPics:
		if inventory.Images >= 4 {
			return mode
		}
		return enforceArity(domain.ModeThreePics, inventory)
	case domain.ModeThreePics:
		if inventory.Images >= 3 {
			return mode
		}
		if inventory.Videos > 0 {
			return domain.ModeVideo
		}
		return domain.ModeAgent
	case domain.ModeVideo, domain.ModeVerticalVideo:
		if inventory.Videos > 0 {
			return mode
		}
		if inventory.Images >= 3 {
			return enforceArity(domain.ModeThreePics, inventory)
		}
		return domain.ModeAgent
	default:
		return mode
	}
}
