package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/config"
	"github.com/forgetmenot/remind/internal/lifecycle"
	"github.com/forgetmenot/remind/internal/vault"
)

// vault-build-metadata walks object storage and writes the metadata CSV to
// stdout, the headless counterpart of POST /vault/build-metadata.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx := context.Background()
	rt, err := lifecycle.Start(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer rt.Shutdown(ctx)

	csvData, err := vault.BuildMetadataCSV(ctx, rt.ObjectStorage, cfg.ObjectStoreBucket)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}

	if _, err := os.Stdout.Write(csvData); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}
}

func exitCode(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInput, apperr.KindNotFound:
		return 1
	case apperr.KindRetrievalUnavailable, apperr.KindNarrationUnavailable, apperr.KindTTSUnavailable,
		apperr.KindLipSyncUnavailable, apperr.KindExternalUnavailable, apperr.KindTimeout:
		return 2
	default:
		return 3
	}
}
