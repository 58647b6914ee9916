package adapters

import (
	"context"
	"fmt"
	"time"
)

// HTTPSoundEffects talks to the external sound-effects generation service.
type HTTPSoundEffects struct {
	base baseHTTPClient
}

func NewHTTPSoundEffects(baseURL, apiKey string) *HTTPSoundEffects {
	return &HTTPSoundEffects{base: newBaseHTTPClient(baseURL, apiKey, 30*time.Second)}
}

func (s *HTTPSoundEffects) Generate(ctx context.Context, prompt string, durationSeconds, promptInfluence float64) ([]byte, error) {
	req := struct {
		Prompt          string  `json:"prompt"`
		DurationSeconds float64 `json:"duration_seconds"`
		PromptInfluence float64 `json:"prompt_influence"`
	}{
		Prompt:          prompt,
		DurationSeconds: durationSeconds,
		PromptInfluence: promptInfluence,
	}
	buf, err := marshalAndPost(ctx, &s.base, "/sfx/generate", req)
	if err != nil {
		return nil, fmt.Errorf("sfx generate: %w", err)
	}
	return buf, nil
}

func marshalAndPost(ctx context.Context, base *baseHTTPClient, path string, req any) ([]byte, error) {
	var out struct {
		AudioB64 string `json:"audio_base64"`
	}
	if err := base.postJSON(ctx, path, req, &out); err != nil {
		return nil, err
	}
	return decodeB64(out.AudioB64)
}
