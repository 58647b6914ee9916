package adapters

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

// HTTPLipSync talks to the external lip-sync service. LipSync calls may be
// long-running on the provider's side; the spec's timeout (120s) is applied
// here and surfaced as apperr.KindLipSyncUnavailable by the caller, not
// retried automatically.
type HTTPLipSync struct {
	base baseHTTPClient
}

func NewHTTPLipSync(baseURL, apiKey string) *HTTPLipSync {
	return &HTTPLipSync{base: newBaseHTTPClient(baseURL, apiKey, 120*time.Second)}
}

func (l *HTTPLipSync) Generate(ctx context.Context, imageOrVideoURL string, audio []byte) (string, error) {
	req := struct {
		SourceURL string `json:"source_url"`
		AudioB64  string `json:"audio_base64"`
	}{
		SourceURL: imageOrVideoURL,
		AudioB64:  base64.StdEncoding.EncodeToString(audio),
	}
	var out struct {
		VideoURL string `json:"video_url"`
	}
	if err := l.base.postJSON(ctx, "/lipsync/generate", req, &out); err != nil {
		return "", fmt.Errorf("lipsync generate: %w", err)
	}
	return out.VideoURL, nil
}
