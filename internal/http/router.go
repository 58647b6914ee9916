package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/auth"
)

// NewRouter wires every route group behind the shared middleware stack,
// gating ingestion and experience-authoring behind a caregiver JWT while
// leaving patient-facing routes open, per §4.11.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *auth.JWTService,
	authH *AuthHandler,
	healthH *HealthHandler,
	ingestH *IngestHandler,
	vaultH *VaultHandler,
	retrievalH *RetrievalHandler,
	experienceH *ExperienceHandler,
	patientH *PatientHandler,
	passthroughH *PassthroughHandler,
	historyH *HistoryHandler,
	cacheH *CacheHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", healthH.Healthz)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", authH.Register)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/refresh", authH.Refresh)
	authGroup.POST("/logout", JWTAuthMiddleware(jwtSvc), authH.Logout)

	ingest := r.Group("/ingest", JWTAuthMiddleware(jwtSvc))
	ingest.POST("/:event/faces", ingestH.ExtractFaces)
	ingest.POST("/:event/names", ingestH.ApplyNamesAndFinalize)

	vaultGroup := r.Group("/vault")
	vaultGroup.GET("/health", vaultH.Health)
	vaultGroup.GET("/count", vaultH.Count)
	vaultGroup.POST("/build-metadata", vaultH.BuildMetadata)
	vaultGroup.POST("/upload-metadata", vaultH.UploadMetadata)

	retrieval := r.Group("/retrieval")
	retrieval.POST("/search", retrievalH.SearchPost)
	retrieval.GET("/search", retrievalH.SearchGet)

	experience := r.Group("/experience")
	experience.POST("", JWTAuthMiddleware(jwtSvc), experienceH.Create)
	experience.GET("", experienceH.List)
	experience.GET("/:id", experienceH.GetByID)
	experience.GET("/by-topic", experienceH.GetByTopic)

	patient := r.Group("/patient")
	patient.POST("/query/audio", patientH.QueryWithAudio)
	patient.POST("/query/text", patientH.QueryText)

	r.POST("/transcribe", passthroughH.Transcribe)
	r.POST("/tts", passthroughH.TTS)
	r.POST("/lipsync", passthroughH.LipSync)
	r.POST("/sfx", passthroughH.SoundEffects)

	historyGroup := r.Group("/history")
	historyGroup.GET("", historyH.Get)
	historyGroup.GET("/stats", historyH.Stats)
	historyGroup.POST("/reset", historyH.Reset)
	historyGroup.GET("/export", historyH.Export)

	cacheGroup := r.Group("/cache")
	cacheGroup.GET("/stats", cacheH.Stats)
	cacheGroup.POST("/clear", cacheH.Clear)

	return r
}
