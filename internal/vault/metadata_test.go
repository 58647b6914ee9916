package vault

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/forgetmenot/remind/internal/domain"
)

type fakeMetadataStorage struct {
	keys     []string
	texts    map[string]string
	urls     map[string]string
}

func (f *fakeMetadataStorage) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	return "", nil
}

func (f *fakeMetadataStorage) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	return f.keys, nil
}

func (f *fakeMetadataStorage) GetText(ctx context.Context, bucket, key string) (string, error) {
	return f.texts[key], nil
}

func (f *fakeMetadataStorage) GetBytes(ctx context.Context, bucket, key string) ([]byte, error) {
	return nil, nil
}

func (f *fakeMetadataStorage) PublicURL(ctx context.Context, bucket, key string) (string, error) {
	return f.urls[key], nil
}

func TestBuildMetadataCSV_JoinsContextFileAgainstEventFiles(t *testing.T) {
	storage := &fakeMetadataStorage{
		keys: []string{"beach trip/a.jpg", "beach trip/context.json"},
		texts: map[string]string{
			"beach trip/context.json": `{"memory_context":"beach trip with Maria","a_context":"Maria at the beach","a_people":["maria"]}`,
		},
		urls: map[string]string{"beach trip/a.jpg": "https://storage.example/beach-a.jpg"},
	}

	raw, err := BuildMetadataCSV(context.Background(), storage, "bucket")
	if err != nil {
		t.Fatalf("build metadata csv: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	if err != nil {
		t.Fatalf("parse produced csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if rows[0][0] != "id" {
		t.Fatalf("expected id header first, got %v", rows[0])
	}
	if rows[1][1] != "beach trip" || rows[1][2] != "a.jpg" {
		t.Fatalf("unexpected row %v", rows[1])
	}
}

type fakeMetadataVaultStore struct {
	upserted []domain.MemoryRecord
}

func (f *fakeMetadataVaultStore) Upsert(ctx context.Context, record domain.MemoryRecord) error {
	f.upserted = append(f.upserted, record)
	return nil
}

func (f *fakeMetadataVaultStore) Search(ctx context.Context, queryText string, k int, filter domain.Filter) ([]domain.ScoredMemory, error) {
	return nil, nil
}

func (f *fakeMetadataVaultStore) Count(ctx context.Context) (int, error) {
	return len(f.upserted), nil
}

func TestUploadMetadataCSV_UpsertsEveryRow(t *testing.T) {
	csvData := "id,event_name,file_name,file_type,description,people,event_summary,file_url\n" +
		"beach trip::a.jpg,beach trip,a.jpg,image,Maria at the beach,\"[\"\"maria\"\"]\",beach trip with Maria,https://storage.example/beach-a.jpg\n"

	store := &fakeMetadataVaultStore{}
	count, err := UploadMetadataCSV(context.Background(), store, []byte(csvData))
	if err != nil {
		t.Fatalf("upload metadata csv: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 upserted row, got %d", count)
	}
	if store.upserted[0].People[0] != "maria" {
		t.Fatalf("expected people to be parsed from JSON column, got %v", store.upserted[0].People)
	}
}

func TestUploadMetadataCSV_RejectsMissingColumn(t *testing.T) {
	csvData := "id,event_name\nm1,trip\n"
	_, err := UploadMetadataCSV(context.Background(), &fakeMetadataVaultStore{}, []byte(csvData))
	if err == nil {
		t.Fatalf("expected error for missing required column")
	}
}
