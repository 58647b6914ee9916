// Package config centralizes ReMind's environment-driven configuration,
// following internal/config/config.go's single-struct-plus-env.Parse shape.
package config

import "github.com/caarlos0/env/v10"

// Config is the immutable, fully-populated configuration record every
// component reads from at startup. Nothing reads os.Getenv directly outside
// this package.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	VectorStoreHost     string `env:"VECTOR_STORE_HOST" envDefault:"localhost"`
	VectorStorePort     int    `env:"VECTOR_STORE_PORT" envDefault:"5432"`
	VectorStoreDatabase string `env:"VECTOR_STORE_DATABASE"`
	VectorStoreSchema   string `env:"VECTOR_STORE_SCHEMA" envDefault:"public"`

	ObjectStoreBaseURL     string `env:"OBJECT_STORE_BASE_URL,required"`
	ObjectStoreBucket      string `env:"OBJECT_STORE_BUCKET,required"`
	ObjectStoreCredentials string `env:"OBJECT_STORE_CREDENTIALS,required"`

	LLMAPIKey  string `env:"LLM_API_KEY,required"`
	LLMBaseURL string `env:"LLM_BASE_URL"`
	LLMModel   string `env:"LLM_MODEL" envDefault:"gpt-5.1"`

	EmbedModelName string `env:"EMBED_MODEL_NAME" envDefault:"text-embedding-3-small"`

	TTSAPIKey     string `env:"TTS_API_KEY,required"`
	TTSBaseURL    string `env:"TTS_BASE_URL"`
	LipSyncAPIKey string `env:"LIPSYNC_API_KEY,required"`
	LipSyncBaseURL string `env:"LIPSYNC_BASE_URL"`
	SFXAPIKey     string `env:"SFX_API_KEY,required"`
	SFXBaseURL    string `env:"SFX_BASE_URL"`
	STTAPIKey     string `env:"STT_API_KEY"`
	STTBaseURL    string `env:"STT_BASE_URL"`

	FaceRecognitionBaseURL string `env:"FACE_RECOGNITION_BASE_URL"`
	FaceRecognitionAPIKey  string `env:"FACE_RECOGNITION_API_KEY"`
	AudioDecoderBaseURL    string `env:"AUDIO_DECODER_BASE_URL"`
	AudioDecoderAPIKey     string `env:"AUDIO_DECODER_API_KEY"`
	VoiceCloneBaseURL      string `env:"VOICE_CLONE_BASE_URL"`
	VoiceCloneAPIKey       string `env:"VOICE_CLONE_API_KEY"`

	CacheTTLMinutes     int `env:"CACHE_TTL_MINUTES" envDefault:"30"`
	HistoryWindowTurns  int `env:"HISTORY_WINDOW_TURNS" envDefault:"10"`
	HistoryTTLHours     int `env:"HISTORY_TTL_HOURS" envDefault:"24"`
	IngestionConcurrency int `env:"INGESTION_CONCURRENCY" envDefault:"2"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	JWTSecret            string `env:"JWT_SECRET,required"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"120"`
	JWTRefreshTTLHours   int    `env:"JWT_REFRESH_TTL_HOURS" envDefault:"336"`
}

// Load parses Config from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
