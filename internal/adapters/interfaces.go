// Package adapters wraps every external collaborator named in spec §4.1
// behind a narrow Go interface: embedding, LLM generation, TTS,
// voice-clone registry, lip-sync, sound-effects, object storage,
// face-recognition and audio-decoding, plus speech-to-text. Business
// packages depend on these interfaces only, never on a concrete client.
package adapters

import "context"

// Embedder turns text into a fixed-dimension dense vector. It never returns
// a zero vector; a transport failure is surfaced as an error instead.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LLM generates free-form text from a prompt.
type LLM interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// TTS synthesizes speech audio (mime audio/mpeg) for a named voice.
type TTS interface {
	Synthesize(ctx context.Context, text, voiceName string) ([]byte, error)
}

// VoiceCloneRegistry lists and provisions voice clones keyed by name.
type VoiceCloneRegistry interface {
	List(ctx context.Context) (map[string]string, error)
	Create(ctx context.Context, name string, audio []byte) (string, error)
}

// LipSync renders a lip-synced video from a still image or clip plus audio.
// May be long-running; the polling contract, if any, is internal to the
// implementation.
type LipSync interface {
	Generate(ctx context.Context, imageOrVideoURL string, audio []byte) (videoURL string, err error)
}

// SoundEffects generates mood-appropriate background audio.
type SoundEffects interface {
	Generate(ctx context.Context, prompt string, durationSeconds float64, promptInfluence float64) ([]byte, error)
}

// ObjectStorage is the uniform interface over the external object store.
// GetBytes and PublicURL are ReMind's additions beyond the §4.1
// put/list/get_text contract: ingestion's face/audio stages need the raw
// media bytes behind a key, and S6 needs the stable public URL of a file
// that was already written in an earlier stage without re-uploading it.
type ObjectStorage interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	GetText(ctx context.Context, bucket, key string) (string, error)
	GetBytes(ctx context.Context, bucket, key string) ([]byte, error)
	PublicURL(ctx context.Context, bucket, key string) (string, error)
}

// FaceBBox is a detected face bounding box, normalized [0,1] relative to the
// source image or frame.
type FaceBBox struct {
	X, Y, W, H float64
}

// FaceDetection pairs a bounding box with its embedding.
type FaceDetection struct {
	BBox     FaceBBox
	Encoding []float32
}

// FaceRecognition locates and clusters faces.
type FaceRecognition interface {
	LocateAndEncode(ctx context.Context, image []byte) ([]FaceDetection, error)
	Cluster(ctx context.Context, encodings [][]float32, tolerance float64) ([]int, error)
}

// AudioDecoder extracts and concatenates audio tracks.
type AudioDecoder interface {
	ExtractAudio(ctx context.Context, video []byte) ([]byte, error)
	Concatenate(ctx context.Context, clips [][]byte) ([]byte, error)
}

// SpeechToText transcribes an audio clip.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
