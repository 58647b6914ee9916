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
	"github.com/forgetmenot/remind/internal/domain"
	"github.com/forgetmenot/remind/internal/ingestion"
	"github.com/forgetmenot/remind/internal/lifecycle"
)

// namesFile is the shape of the names.json argument: the reviewed face
// clusters plus the caregiver's forward/reverse name mapping for them,
// mirroring the HTTP facade's nameMappingRequest.
type namesFile struct {
	Clusters       []domain.FaceCluster `json:"clusters"`
	Forward        map[string]string    `json:"forward"`
	Reverse        map[string]*string   `json:"reverse"`
	CaregiverEmail string               `json:"caregiver_email"`
	Concurrency    int                  `json:"concurrency"`
}

// ingest-apply-names runs S2 through S6 headlessly: applies the caregiver's
// name mapping, generates per-file context, extracts and provisions solo
// voices, and upserts the finished MemoryRecords into the Vault.
func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: ingest-apply-names <archive> <names.json>")
		os.Exit(1)
	}
	archive := os.Args[1]
	namesPath := os.Args[2]

	raw, err := os.ReadFile(namesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var names namesFile
	if err := json.Unmarshal(raw, &names); err != nil {
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

	mapping := ingestion.NameMapping{Forward: names.Forward, Reverse: names.Reverse}

	people, err := rt.Ingestion.ApplyNameMapping(ctx, names.Clusters, mapping)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}

	ctxFile, err := rt.Ingestion.GenerateEventContext(ctx, archive, people, names.Concurrency)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}

	people, err = rt.Ingestion.ExtractAndProvisionVoices(ctx, archive, people, ctxFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}

	upserted, err := rt.Ingestion.UpsertEvent(ctx, archive, names.CaregiverEmail, ctxFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}

	out := map[string]any{
		"event":             archive,
		"people":            people,
		"memories_upserted": upserted,
	}
	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
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
