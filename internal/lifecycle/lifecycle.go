// Package lifecycle generalizes cmd/api/main.go's inline wiring into an
// explicit Start/Shutdown pair: scoped acquisition of every adapter client
// and storage connection at startup, guaranteed release on every exit path,
// per spec §4.12.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/auth"
	"github.com/forgetmenot/remind/internal/cache"
	"github.com/forgetmenot/remind/internal/config"
	"github.com/forgetmenot/remind/internal/email"
	"github.com/forgetmenot/remind/internal/experience"
	"github.com/forgetmenot/remind/internal/history"
	"github.com/forgetmenot/remind/internal/ingestion"
	"github.com/forgetmenot/remind/internal/narration"
	"github.com/forgetmenot/remind/internal/patientquery"
	"github.com/forgetmenot/remind/internal/people"
	"github.com/forgetmenot/remind/internal/retrieval"
	"github.com/forgetmenot/remind/internal/vault"
)

// Runtime holds every acquired resource and fully-wired component. Shutdown
// releases the pool and Redis client; nothing else in the graph owns a
// closeable resource of its own.
type Runtime struct {
	Config *config.Config
	Logger *zap.Logger

	Pool        *pgxpool.Pool
	RedisClient *redis.Client

	VaultStore    vault.Store
	PeopleStore   people.Store
	CacheStore    cache.Store
	HistoryStore  history.Store
	ObjectStorage adapters.ObjectStorage

	Retrieval  *retrieval.Engine
	Narrator   *narration.Narrator
	Experience *experience.Composer
	Patient    *patientquery.Runtime
	Ingestion  *ingestion.Pipeline

	STT     adapters.SpeechToText
	TTS     adapters.TTS
	LipSync adapters.LipSync
	SFX     adapters.SoundEffects

	Mailer email.Sender
	Auth   *auth.Service
	JWT    *auth.JWTService
}

// Start acquires every adapter client and storage connection and wires the
// full component graph, following cmd/api/main.go's wiring order: pool →
// stores → adapters → domain services → facade-ready components.
func Start(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rt := &Runtime{Config: cfg, Logger: logger, Pool: pool}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		pingErr := redisClient.Ping(pingCtx).Err()
		cancel()
		if pingErr != nil {
			logger.Warn("redis ping failed, falling back to in-process stores", zap.Error(pingErr))
			redisClient = nil
		}
	}
	rt.RedisClient = redisClient

	openAICfg := adapters.OpenAIConfig{
		APIKey:        cfg.LLMAPIKey,
		BaseURL:       cfg.LLMBaseURL,
		EmbedModel:    cfg.EmbedModelName,
		GenerateModel: cfg.LLMModel,
		TTSModel:      "tts-1",
		STTModel:      "whisper-1",
	}
	embedder := adapters.NewOpenAIEmbedder(openAICfg)
	llm := adapters.NewOpenAILLM(openAICfg)
	tts := adapters.NewOpenAITTS(openAICfg)
	stt := adapters.NewOpenAISTT(openAICfg)

	objectStorage := adapters.NewHTTPObjectStorage(cfg.ObjectStoreBaseURL, cfg.ObjectStoreCredentials, cfg.ObjectStoreBucket)
	faceRec := adapters.NewHTTPFaceRecognition(cfg.FaceRecognitionBaseURL, cfg.FaceRecognitionAPIKey)
	audioDecoder := adapters.NewHTTPAudioDecoder(cfg.AudioDecoderBaseURL, cfg.AudioDecoderAPIKey)
	voiceClones := adapters.NewHTTPVoiceCloneRegistry(cfg.VoiceCloneBaseURL, cfg.VoiceCloneAPIKey)
	lipSync := adapters.NewHTTPLipSync(cfg.LipSyncBaseURL, cfg.LipSyncAPIKey)
	sfx := adapters.NewHTTPSoundEffects(cfg.SFXBaseURL, cfg.SFXAPIKey)

	rt.STT = stt
	rt.TTS = tts
	rt.LipSync = lipSync
	rt.SFX = sfx
	rt.ObjectStorage = objectStorage

	rt.VaultStore = vault.NewPgVaultStore(pool, embedder)
	rt.PeopleStore = people.NewPgStore(pool)

	if redisClient != nil {
		rt.CacheStore = cache.NewRedisStore(redisClient)
		rt.HistoryStore = history.NewRedisStore(redisClient, cfg.HistoryWindowTurns, time.Duration(cfg.HistoryTTLHours)*time.Hour)
	} else {
		rt.CacheStore = cache.NewInMemoryStore()
		rt.HistoryStore = history.NewInMemoryStore(cfg.HistoryWindowTurns, time.Duration(cfg.HistoryTTLHours)*time.Hour)
	}

	rt.Retrieval = retrieval.NewEngine(rt.VaultStore, rt.CacheStore)
	rt.Narrator = narration.NewNarrator(llm)
	rt.Experience = experience.NewComposer(rt.Retrieval, rt.Narrator, experience.NewPgExperienceStore(pool))
	rt.Patient = patientquery.NewRuntime(stt, rt.Retrieval, rt.HistoryStore, rt.PeopleStore, llm, rt.Narrator, tts, lipSync)

	mailer := email.Sender(email.NewDisabledSender("smtp not configured"))
	if cfg.SMTPHost != "" {
		sender, smtpErr := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if smtpErr != nil {
			logger.Warn("smtp sender init failed, ingestion-complete emails disabled", zap.Error(smtpErr))
		} else {
			mailer = sender
		}
	}
	rt.Mailer = mailer

	rt.Ingestion = ingestion.NewPipeline(faceRec, llm, audioDecoder, voiceClones, objectStorage, rt.VaultStore, rt.PeopleStore, mailer, logger, cfg.ObjectStoreBucket)

	var refreshStore auth.RefreshTokenStore = auth.NewInMemoryRefreshTokenStore()
	if redisClient != nil {
		refreshStore = auth.NewRedisRefreshTokenStore(redisClient)
	}
	rt.JWT = auth.NewJWTServiceWithTTLs(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLHours)*time.Hour,
		refreshStore,
	)
	rt.Auth = auth.NewService(auth.NewPgCaregiverStore(pool), rt.JWT)

	// Classifier (C5) is a stateless function, not a struct, so it needs no
	// entry in Runtime — callers pass llm/people/inventory per call.

	return rt, nil
}

// Shutdown releases every resource Start acquired. Safe to call once;
// idempotent double-calls would double-close the pool, so callers own the
// "call exactly once" discipline the same way cmd/api/main.go's single
// `defer pool.Close()` does.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	if rt.RedisClient != nil {
		if err := rt.RedisClient.Close(); err != nil {
			rt.Logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
	return nil
}

// Ready reports whether the database is reachable, backing GET /healthz.
func (rt *Runtime) Ready(ctx context.Context) error {
	return rt.Pool.Ping(ctx)
}
