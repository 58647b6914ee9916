package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/config"
	"github.com/forgetmenot/remind/internal/lifecycle"
)

// ingest-extract-faces runs S1 headlessly: the HTTP facade's POST
// /ingest/:event/faces without the gin layer, for operators who would
// rather drive ingestion from a shell than a caregiver app.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: ingest-extract-faces <archive>")
		os.Exit(1)
	}
	archive := os.Args[1]

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

	clusters, err := rt.Ingestion.ExtractEventFaces(ctx, archive)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}

	if err := json.NewEncoder(os.Stdout).Encode(clusters); err != nil {
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
