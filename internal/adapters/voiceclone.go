package adapters

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

// HTTPVoiceCloneRegistry talks to the external voice-clone provisioning
// service. No SDK exists for this bespoke API in the example pack, so it
// follows the teacher's bearer-auth net/http client shape.
type HTTPVoiceCloneRegistry struct {
	base baseHTTPClient
}

func NewHTTPVoiceCloneRegistry(baseURL, apiKey string) *HTTPVoiceCloneRegistry {
	return &HTTPVoiceCloneRegistry{base: newBaseHTTPClient(baseURL, apiKey, 30*time.Second)}
}

func (r *HTTPVoiceCloneRegistry) List(ctx context.Context) (map[string]string, error) {
	var out struct {
		Voices map[string]string `json:"voices"`
	}
	if err := r.base.postJSON(ctx, "/voices/list", struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("voice clone list: %w", err)
	}
	return out.Voices, nil
}

func (r *HTTPVoiceCloneRegistry) Create(ctx context.Context, name string, audio []byte) (string, error) {
	req := struct {
		Name      string `json:"name"`
		AudioB64  string `json:"audio_base64"`
	}{
		Name:     name,
		AudioB64: base64.StdEncoding.EncodeToString(audio),
	}
	var out struct {
		ID string `json:"voice_clone_id"`
	}
	if err := r.base.postJSON(ctx, "/voices/create", req, &out); err != nil {
		return "", fmt.Errorf("voice clone create: %w", err)
	}
	return out.ID, nil
}
