// Package people implements the Person registry: the store that owns
// canonical named identities, separate from the Vault's MemoryRecords per
// spec §5 ("records carry people by name only; the Person registry is a
// separate owner"). Ingestion writes it (S2 name mapping, S5 voice-clone
// provisioning); Retrieval/Narration/patientquery only ever read it.
package people

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/domain"
)

// Store is the Person registry contract: list everyone, upsert one (merge
// semantics on re-ingestion of the same name), and a single voice-clone-ID
// update used by S5 without requiring the caller to round-trip the whole
// record.
type Store interface {
	List(ctx context.Context) ([]domain.Person, error)
	Upsert(ctx context.Context, p domain.Person) error
	SetVoiceCloneID(ctx context.Context, name, voiceCloneID string) error
}

// PgStore is the pgx-backed Store implementation, following vault.go's
// plain-query-with-ON-CONFLICT shape.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) List(ctx context.Context) ([]domain.Person, error) {
	const query = `
		SELECT name, display_name, face_exemplars, voice_clone_id, created_at
		FROM persons
		ORDER BY name
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var out []domain.Person
	for rows.Next() {
		var p domain.Person
		var exemplarsJSON []byte
		if err := rows.Scan(&p.Name, &p.DisplayName, &exemplarsJSON, &p.VoiceCloneID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		if len(exemplarsJSON) > 0 {
			if err := json.Unmarshal(exemplarsJSON, &p.FaceExemplars); err != nil {
				return nil, fmt.Errorf("unmarshal face exemplars for %s: %w", p.Name, err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces a Person's exemplars/display name, preserving
// any previously provisioned voice_clone_id when the incoming record doesn't
// carry one (a re-run of S2 shouldn't un-provision a clone from S5).
func (s *PgStore) Upsert(ctx context.Context, p domain.Person) error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return apperr.InputError("person name is required")
	}
	exemplarsJSON, err := json.Marshal(p.FaceExemplars)
	if err != nil {
		return fmt.Errorf("marshal face exemplars: %w", err)
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO persons (name, display_name, face_exemplars, voice_clone_id, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			face_exemplars = EXCLUDED.face_exemplars,
			voice_clone_id = COALESCE(NULLIF(EXCLUDED.voice_clone_id, ''), persons.voice_clone_id)
	`
	_, err = s.pool.Exec(ctx, query, name, p.DisplayName, exemplarsJSON, p.VoiceCloneID, createdAt)
	if err != nil {
		return fmt.Errorf("upsert person %s: %w", name, err)
	}
	return nil
}

// SetVoiceCloneID records S5's provisioning result without disturbing the
// rest of the Person record.
func (s *PgStore) SetVoiceCloneID(ctx context.Context, name, voiceCloneID string) error {
	const query = `UPDATE persons SET voice_clone_id = $2 WHERE name = $1`
	tag, err := s.pool.Exec(ctx, query, strings.TrimSpace(name), voiceCloneID)
	if err != nil {
		return fmt.Errorf("set voice clone id for %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set voice clone id: %w", pgx.ErrNoRows)
	}
	return nil
}
