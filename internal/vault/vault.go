// Package vault implements the Memory Vault Store (C2): the content-
// addressed Postgres+pgvector store of per-file MemoryRecords. Embedding
// happens inside Upsert, not at a separate adapter call site, so the
// embedding model and vector store stay co-selected per spec §4.2.
package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/forgetmenot/remind/internal/adapters"
	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/domain"
)

// Store is the Memory Vault contract: upsert, similarity search, count.
type Store interface {
	Upsert(ctx context.Context, record domain.MemoryRecord) error
	Search(ctx context.Context, queryText string, k int, filter domain.Filter) ([]domain.ScoredMemory, error)
	Count(ctx context.Context) (int, error)
}

// PgVaultStore is the pgx/pgvector-backed Store implementation.
type PgVaultStore struct {
	pool     *pgxpool.Pool
	embedder adapters.Embedder
}

func NewPgVaultStore(pool *pgxpool.Pool, embedder adapters.Embedder) *PgVaultStore {
	return &PgVaultStore{pool: pool, embedder: embedder}
}

// Upsert embeds event_summary+description+people at write time and persists
// the record, idempotent on id. Records with empty description still embed,
// falling back to event_name+file_name so no record is left dark.
func (s *PgVaultStore) Upsert(ctx context.Context, record domain.MemoryRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return apperr.InputError("memory record id is required")
	}

	embedText := embeddingText(record)
	vec, err := s.embedder.Embed(ctx, embedText)
	if err != nil {
		return apperr.ExternalUnavailable("embed memory record", err)
	}
	if len(vec) == 0 {
		return apperr.InvariantViolation("embedding returned empty vector for record " + record.ID)
	}

	peopleJSON, err := json.Marshal(record.People)
	if err != nil {
		return fmt.Errorf("marshal people: %w", err)
	}

	now := time.Now().UTC()
	const query = `
		INSERT INTO memory_records (
			id, event_name, file_name, file_type, description, people, event_summary, file_url, orientation, embedding, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			event_name = EXCLUDED.event_name,
			file_name = EXCLUDED.file_name,
			file_type = EXCLUDED.file_type,
			description = EXCLUDED.description,
			people = EXCLUDED.people,
			event_summary = EXCLUDED.event_summary,
			file_url = EXCLUDED.file_url,
			orientation = EXCLUDED.orientation,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.pool.Exec(ctx, query,
		record.ID,
		record.EventName,
		record.FileName,
		string(record.FileType),
		record.Description,
		peopleJSON,
		record.EventSummary,
		record.FileURL,
		record.Orientation,
		pgvector.NewVector(vec),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert memory record %s: %w", record.ID, err)
	}
	return nil
}

// embeddingText builds the text embedded for a record: event_summary +
// description + people, falling back to event_name + file_name when the
// description is empty so the record is never left without a vector.
func embeddingText(r domain.MemoryRecord) string {
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		desc = strings.TrimSpace(r.EventName + " " + r.FileName)
	}
	parts := []string{strings.TrimSpace(r.EventSummary), desc}
	if len(r.People) > 0 {
		parts = append(parts, strings.Join(r.People, ", "))
	}
	return strings.Join(nonEmpty(parts), "\n")
}

func nonEmpty(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Search embeds the query, delegates to the vector store's top-K ordering
// and returns results sorted descending by similarity.
func (s *PgVaultStore) Search(ctx context.Context, queryText string, k int, filter domain.Filter) ([]domain.ScoredMemory, error) {
	if k <= 0 {
		k = 5
	}
	vec, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, apperr.RetrievalUnavailable("embed query", err)
	}

	var (
		whereClauses []string
		args         = []any{pgvector.NewVector(vec)}
	)
	if filter.EventName != "" {
		args = append(args, filter.EventName)
		whereClauses = append(whereClauses, fmt.Sprintf("event_name = $%d", len(args)))
	}
	if len(filter.People) > 0 {
		args = append(args, filter.People)
		whereClauses = append(whereClauses, fmt.Sprintf("people ?| $%d::text[]", len(args)))
	}

	where := ""
	if len(whereClauses) > 0 {
		where = "WHERE " + strings.Join(whereClauses, " AND ")
	}
	args = append(args, k)

	query := fmt.Sprintf(`
		SELECT id, event_name, file_name, file_type, description, people, event_summary, file_url, orientation, created_at, updated_at,
		       1 - (embedding <=> $1) AS similarity
		FROM memory_records
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, where, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.RetrievalUnavailable("search vault", err)
	}
	defer rows.Close()

	return scanScoredMemories(rows)
}

func (s *PgVaultStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memory_records`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memory records: %w", err)
	}
	return n, nil
}

func scanScoredMemories(rows pgxRows) ([]domain.ScoredMemory, error) {
	var out []domain.ScoredMemory
	for rows.Next() {
		var (
			m           domain.ScoredMemory
			fileType    string
			peopleJSON  []byte
			orientation sql.NullString
		)
		if err := rows.Scan(
			&m.ID,
			&m.EventName,
			&m.FileName,
			&fileType,
			&m.Description,
			&peopleJSON,
			&m.EventSummary,
			&m.FileURL,
			&orientation,
			&m.CreatedAt,
			&m.UpdatedAt,
			&m.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan memory record: %w", err)
		}
		m.FileType = domain.FileType(fileType)
		if orientation.Valid {
			m.Orientation = orientation.String
		}
		if len(peopleJSON) > 0 {
			if err := json.Unmarshal(peopleJSON, &m.People); err != nil {
				return nil, fmt.Errorf("unmarshal people: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory records: %w", err)
	}
	return out, nil
}

// pgxRows is a minimal interface to allow scanning from pgx rows and
// simplify testing, mirroring the teacher's memory_repo.go.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}
