package adapters

import (
	"context"
	"fmt"
	"time"
)

// HTTPAudioDecoder talks to the external audio extraction/concatenation
// service used by ingestion S4.
type HTTPAudioDecoder struct {
	base baseHTTPClient
}

func NewHTTPAudioDecoder(baseURL, apiKey string) *HTTPAudioDecoder {
	return &HTTPAudioDecoder{base: newBaseHTTPClient(baseURL, apiKey, 60*time.Second)}
}

func (a *HTTPAudioDecoder) ExtractAudio(ctx context.Context, video []byte) ([]byte, error) {
	req := struct {
		VideoB64 string `json:"video_base64"`
	}{VideoB64: encodeB64(video)}
	out, err := marshalAndPost(ctx, &a.base, "/audio/extract", req)
	if err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	return out, nil
}

func (a *HTTPAudioDecoder) Concatenate(ctx context.Context, clips [][]byte) ([]byte, error) {
	encoded := make([]string, len(clips))
	for i, c := range clips {
		encoded[i] = encodeB64(c)
	}
	req := struct {
		ClipsB64 []string `json:"clips_base64"`
	}{ClipsB64: encoded}
	out, err := marshalAndPost(ctx, &a.base, "/audio/concatenate", req)
	if err != nil {
		return nil, fmt.Errorf("concatenate audio: %w", err)
	}
	return out, nil
}
