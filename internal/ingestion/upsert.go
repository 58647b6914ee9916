package ingestion

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/domain"
)

// VaultUpserter is the subset of vault.Store this stage depends on.
type VaultUpserter interface {
	Upsert(ctx context.Context, record domain.MemoryRecord) error
}

// UpsertEventFolder runs S6 for one event folder: from its already loaded
// ContextFile (ctxFile), emit one MemoryRecord per file (joined with the
// event's memory_context)
// and call Vault.Upsert. Each record is all-or-nothing; a failed record is
// logged and skipped rather than aborting the folder, so one bad file never
// blocks the rest of the event from reaching the Vault.
func UpsertEventFolder(ctx context.Context, v VaultUpserter, storage adapters.ObjectStorage, bucket, eventName string, fileKeys []string, ctxFile domain.ContextFile, logger *zap.Logger) (int, error) {
	upserted := 0
	for _, key := range fileKeys {
		normalizedKey := normalizeFileKey(key)
		entry, ok := ctxFile.Files[normalizedKey]
		if !ok {
			logger.Warn("ingestion: no context entry for file", zap.String("event", eventName), zap.String("file", key))
			continue
		}

		url, err := storage.PublicURL(ctx, bucket, key)
		if err != nil {
			logger.Warn("ingestion: could not resolve file url", zap.String("event", eventName), zap.String("file", key), zap.Error(err))
			continue
		}

		record := domain.MemoryRecord{
			ID:           recordID(eventName, key),
			EventName:    eventName,
			FileName:     path.Base(key),
			FileType:     fileTypeFor(key),
			Description:  entry.Description,
			People:       entry.People,
			EventSummary: ctxFile.MemoryContext,
			FileURL:      url,
		}

		if err := v.Upsert(ctx, record); err != nil {
			logger.Warn("ingestion: vault upsert failed", zap.String("event", eventName), zap.String("file", key), zap.Error(err))
			continue
		}
		upserted++
	}
	return upserted, nil
}

// recordID derives a stable content-addressed MemoryRecord id per §3.
func recordID(eventName, fileName string) string {
	return fmt.Sprintf("%s::%s", strings.ToLower(strings.TrimSpace(eventName)), strings.ToLower(path.Base(fileName)))
}

func fileTypeFor(key string) domain.FileType {
	if isVideoFile(key) {
		return domain.FileTypeVideo
	}
	return domain.FileTypeImage
}
