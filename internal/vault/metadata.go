package vault

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/domain"
)

var metadataCSVHeader = []string{"id", "event_name", "file_name", "file_type", "description", "people", "event_summary", "file_url"}

const (
	contextFileSuffix = "/context.json"
	faceCropPrefix    = "_faces/"

	contextKeyName   = "memory_context"
	contextKeySuffix = "_context"
	peopleKeySuffix  = "_people"
)

// flatContextFile is the parsed form of a §3 ContextFile: memoryContext plus
// per-file description/people, keyed by normalizeMetadataKey(file_name).
type flatContextFile struct {
	memoryContext string
	files         map[string]domain.ContextFileEntry
}

// parseContextFile reads §3's flat bit-exact context.json shape (one
// "memory_context" key plus, per file, "<name>_context"/"<name>_people")
// directly, mirroring internal/ingestion/context.go's MarshalContextFile
// without importing it (both helpers are small and package-local there).
func parseContextFile(raw []byte) (flatContextFile, error) {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(raw, &flat); err != nil {
		return flatContextFile{}, fmt.Errorf("unmarshal context file: %w", err)
	}

	cf := flatContextFile{files: make(map[string]domain.ContextFileEntry)}
	descriptions := make(map[string]string)
	peopleLists := make(map[string][]string)

	for rawKey, rawVal := range flat {
		switch {
		case rawKey == contextKeyName:
			if err := json.Unmarshal(rawVal, &cf.memoryContext); err != nil {
				return flatContextFile{}, fmt.Errorf("unmarshal %s: %w", contextKeyName, err)
			}
		case strings.HasSuffix(rawKey, contextKeySuffix):
			base := normalizeMetadataKey(strings.TrimSuffix(rawKey, contextKeySuffix))
			var description string
			if err := json.Unmarshal(rawVal, &description); err != nil {
				return flatContextFile{}, fmt.Errorf("unmarshal %s: %w", rawKey, err)
			}
			descriptions[base] = description
		case strings.HasSuffix(rawKey, peopleKeySuffix):
			base := normalizeMetadataKey(strings.TrimSuffix(rawKey, peopleKeySuffix))
			var people []string
			if err := json.Unmarshal(rawVal, &people); err != nil {
				return flatContextFile{}, fmt.Errorf("unmarshal %s: %w", rawKey, err)
			}
			peopleLists[base] = people
		}
	}

	for base, description := range descriptions {
		cf.files[base] = domain.ContextFileEntry{Description: description, People: peopleLists[base]}
	}
	for base, people := range peopleLists {
		if _, ok := cf.files[base]; !ok {
			cf.files[base] = domain.ContextFileEntry{People: people}
		}
	}
	return cf, nil
}

// BuildMetadataCSV walks every event folder in object storage and emits the
// intermediate metadata CSV described by §6: one row per file, joined
// against that event's already-persisted context.json. No embedding column
// — embeddings are computed at upsert time, not here.
func BuildMetadataCSV(ctx context.Context, storage adapters.ObjectStorage, bucket string) ([]byte, error) {
	allKeys, err := storage.List(ctx, bucket, "")
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}

	byEvent := make(map[string][]string)
	for _, key := range allKeys {
		if strings.HasSuffix(key, contextFileSuffix) || strings.HasPrefix(key, faceCropPrefix) {
			continue
		}
		event := eventNameOf(key)
		if event == "" {
			continue
		}
		byEvent[event] = append(byEvent[event], key)
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write(metadataCSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for event, fileKeys := range byEvent {
		raw, err := storage.GetText(ctx, bucket, event+contextFileSuffix)
		if err != nil {
			continue // no context.json yet for this event; skip rather than abort the run.
		}
		cf, err := parseContextFile([]byte(raw))
		if err != nil {
			continue
		}

		for _, key := range fileKeys {
			entry, ok := cf.files[normalizeMetadataKey(key)]
			if !ok {
				continue
			}
			url, err := storage.PublicURL(ctx, bucket, key)
			if err != nil {
				continue
			}
			peopleJSON, err := json.Marshal(entry.People)
			if err != nil {
				return nil, fmt.Errorf("marshal people for %s: %w", key, err)
			}
			row := []string{
				metadataRecordID(event, key),
				event,
				path.Base(key),
				string(metadataFileType(key)),
				entry.Description,
				string(peopleJSON),
				cf.memoryContext,
				url,
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("write csv row for %s: %w", key, err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return []byte(buf.String()), nil
}

// UploadMetadataCSV parses a previously built metadata CSV and upserts every
// row into the Vault, matching the column order §6 fixes.
func UploadMetadataCSV(ctx context.Context, store Store, csvData []byte) (int, error) {
	r := csv.NewReader(strings.NewReader(string(csvData)))
	rows, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse metadata csv: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	header := rows[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	required := []string{"id", "event_name", "file_name", "file_type", "description", "people", "event_summary", "file_url"}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return 0, fmt.Errorf("metadata csv missing column %q", name)
		}
	}

	upserted := 0
	for _, row := range rows[1:] {
		var people []string
		if raw := row[col["people"]]; strings.TrimSpace(raw) != "" {
			if err := json.Unmarshal([]byte(raw), &people); err != nil {
				return upserted, fmt.Errorf("unmarshal people column: %w", err)
			}
		}
		record := domain.MemoryRecord{
			ID:           row[col["id"]],
			EventName:    row[col["event_name"]],
			FileName:     row[col["file_name"]],
			FileType:     domain.FileType(row[col["file_type"]]),
			Description:  row[col["description"]],
			People:       people,
			EventSummary: row[col["event_summary"]],
			FileURL:      row[col["file_url"]],
		}
		if err := store.Upsert(ctx, record); err != nil {
			return upserted, fmt.Errorf("upsert row %s: %w", record.ID, err)
		}
		upserted++
	}
	return upserted, nil
}

func eventNameOf(key string) string {
	idx := strings.Index(key, "/")
	if idx < 0 {
		return ""
	}
	return key[:idx]
}

func metadataRecordID(eventName, fileName string) string {
	return fmt.Sprintf("%s::%s", strings.ToLower(strings.TrimSpace(eventName)), strings.ToLower(path.Base(fileName)))
}

var videoExtensions = map[string]bool{".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true}

func metadataFileType(key string) domain.FileType {
	if videoExtensions[strings.ToLower(path.Ext(key))] {
		return domain.FileTypeVideo
	}
	return domain.FileTypeImage
}

// normalizeMetadataKey mirrors ingestion.normalizeFileKey: strip any path,
// strip the extension, then collapse narrow/non-breaking spaces to ordinary
// spaces and lower-case, so metadata rows join against the same keys
// context.json's flat "<name>_context"/"<name>_people" keys were written
// with.
func normalizeMetadataKey(key string) string {
	base := path.Base(key)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	replacer := strings.NewReplacer(
		" ", " ",
		" ", " ",
		" ", " ",
	)
	return strings.ToLower(replacer.Replace(base))
}
