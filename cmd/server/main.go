package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/config"
	apihttp "github.com/forgetmenot/remind/internal/http"
	"github.com/forgetmenot/remind/internal/lifecycle"
)

func main() {
	ctx := context.Background()

	host := flag.String("host", "", "address to bind (empty binds all interfaces)")
	port := flag.String("port", "", "port to bind (overrides HTTP_PORT)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if *port != "" {
		cfg.HTTPPort = *port
	}

	rt, err := lifecycle.Start(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	authH := apihttp.NewAuthHandler(logger, rt.Auth)
	healthH := apihttp.NewHealthHandler(rt)
	ingestH := apihttp.NewIngestHandler(logger, rt.Ingestion)
	vaultH := apihttp.NewVaultHandler(logger, rt.VaultStore, rt.ObjectStorage, rt.Config.ObjectStoreBucket)
	retrievalH := apihttp.NewRetrievalHandler(logger, rt.Retrieval)
	experienceH := apihttp.NewExperienceHandler(logger, rt.Experience)
	patientH := apihttp.NewPatientHandler(logger, rt.Patient)
	passthroughH := apihttp.NewPassthroughHandler(logger, rt.STT, rt.TTS, rt.LipSync, rt.SFX)
	historyH := apihttp.NewHistoryHandler(logger, rt.HistoryStore)
	cacheH := apihttp.NewCacheHandler(logger, rt.CacheStore)

	router := apihttp.NewRouter(
		logger, rt.JWT,
		authH, healthH, ingestH, vaultH, retrievalH, experienceH, patientH, passthroughH, historyH, cacheH,
	)

	addr := *host + ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("addr", addr))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
