package adapters

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig carries the credentials/model choices shared by the
// embedding, LLM, TTS and STT adapters, all of which are thin wrappers over
// one openai-go client.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	EmbedModel    string
	GenerateModel string
	TTSModel      string
	STTModel      string
}

func newOpenAIClient(apiKey, baseURL string) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}

// OpenAIEmbedder implements Embedder over the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: newOpenAIClient(cfg.APIKey, cfg.BaseURL), model: cfg.EmbedModel}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		text = "(empty)"
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// OpenAILLM implements LLM over OpenAI chat completions.
type OpenAILLM struct {
	client openai.Client
	model  string
}

func NewOpenAILLM(cfg OpenAIConfig) *OpenAILLM {
	return &OpenAILLM{client: newOpenAIClient(cfg.APIKey, cfg.BaseURL), model: cfg.GenerateModel}
}

func (l *OpenAILLM) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(l.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if temperature > 0 {
		req.Temperature = openai.Float(temperature)
	}
	if maxTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	resp, err := l.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAITTS implements TTS over the OpenAI audio speech endpoint.
type OpenAITTS struct {
	client openai.Client
	model  string
}

func NewOpenAITTS(cfg OpenAIConfig) *OpenAITTS {
	return &OpenAITTS{client: newOpenAIClient(cfg.APIKey, cfg.BaseURL), model: cfg.TTSModel}
}

func (t *OpenAITTS) Synthesize(ctx context.Context, text, voiceName string) ([]byte, error) {
	resp, err := t.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(t.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(voiceName),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// OpenAISTT implements SpeechToText over the OpenAI audio transcription
// endpoint.
type OpenAISTT struct {
	client openai.Client
	model  string
}

func NewOpenAISTT(cfg OpenAIConfig) *OpenAISTT {
	return &OpenAISTT{client: newOpenAIClient(cfg.APIKey, cfg.BaseURL), model: cfg.STTModel}
}

func (s *OpenAISTT) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := s.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(s.model),
		File:  openai.File(strings.NewReader(string(audio)), "audio.wav", "audio/wav"),
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}
	return resp.Text, nil
}
