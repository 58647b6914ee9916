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

// vault-upload parses a metadata CSV and upserts every row into the Vault,
// the headless counterpart of POST /vault/upload-metadata.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: vault-upload <csv>")
		os.Exit(1)
	}
	csvPath := os.Args[1]

	raw, err := os.ReadFile(csvPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

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

	count, err := vault.UploadMetadataCSV(ctx, rt.VaultStore, raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}

	fmt.Printf("upserted %d records\n", count)
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
