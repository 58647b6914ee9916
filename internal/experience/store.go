package experience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgetmenot/remind/internal/apperr"
	"github.com/forgetmenot/remind/internal/domain"
)

// Store persists and looks up composed Experiences.
type Store interface {
	Save(ctx context.Context, exp domain.Experience) error
	Get(ctx context.Context, experienceID string) (domain.Experience, error)
	GetByTopic(ctx context.Context, title string) (domain.Experience, error)
	List(ctx context.Context) ([]domain.Experience, error)
}

// PgExperienceStore persists Experiences with their scene payload folded
// into one JSONB column, following the repo's pgx-over-pgxpool idiom.
type PgExperienceStore struct {
	pool *pgxpool.Pool
}

func NewPgExperienceStore(pool *pgxpool.Pool) *PgExperienceStore {
	return &PgExperienceStore{pool: pool}
}

func (s *PgExperienceStore) Save(ctx context.Context, exp domain.Experience) error {
	scenesJSON, err := json.Marshal(exp.Scenes)
	if err != nil {
		return fmt.Errorf("marshal scenes: %w", err)
	}
	const query = `
		INSERT INTO experiences (
			experience_id, title, general_context, scenes, overall_narrative, total_memories, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (experience_id) DO UPDATE SET
			title = EXCLUDED.title,
			general_context = EXCLUDED.general_context,
			scenes = EXCLUDED.scenes,
			overall_narrative = EXCLUDED.overall_narrative,
			total_memories = EXCLUDED.total_memories
	`
	_, err = s.pool.Exec(ctx, query,
		exp.ExperienceID,
		exp.Title,
		exp.GeneralContext,
		scenesJSON,
		exp.OverallNarrative,
		exp.TotalMemories,
		exp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save experience %s: %w", exp.ExperienceID, err)
	}
	return nil
}

func (s *PgExperienceStore) Get(ctx context.Context, experienceID string) (domain.Experience, error) {
	const query = `
		SELECT experience_id, title, general_context, scenes, overall_narrative, total_memories, created_at
		FROM experiences
		WHERE experience_id = $1
	`
	return s.scanOne(ctx, query, experienceID)
}

func (s *PgExperienceStore) GetByTopic(ctx context.Context, title string) (domain.Experience, error) {
	const query = `
		SELECT experience_id, title, general_context, scenes, overall_narrative, total_memories, created_at
		FROM experiences
		WHERE LOWER(title) = LOWER($1)
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanOne(ctx, query, strings.TrimSpace(title))
}

// List returns every composed Experience, most recent first, backing the
// facade's list route.
func (s *PgExperienceStore) List(ctx context.Context) ([]domain.Experience, error) {
	const query = `
		SELECT experience_id, title, general_context, scenes, overall_narrative, total_memories, created_at
		FROM experiences
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list experiences: %w", err)
	}
	defer rows.Close()

	var out []domain.Experience
	for rows.Next() {
		var (
			exp        domain.Experience
			scenesJSON []byte
		)
		if err := rows.Scan(
			&exp.ExperienceID,
			&exp.Title,
			&exp.GeneralContext,
			&scenesJSON,
			&exp.OverallNarrative,
			&exp.TotalMemories,
			&exp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan experience row: %w", err)
		}
		if len(scenesJSON) > 0 {
			if err := json.Unmarshal(scenesJSON, &exp.Scenes); err != nil {
				return nil, fmt.Errorf("unmarshal scenes: %w", err)
			}
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiences: %w", err)
	}
	return out, nil
}

func (s *PgExperienceStore) scanOne(ctx context.Context, query string, arg string) (domain.Experience, error) {
	var (
		exp        domain.Experience
		scenesJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&exp.ExperienceID,
		&exp.Title,
		&exp.GeneralContext,
		&scenesJSON,
		&exp.OverallNarrative,
		&exp.TotalMemories,
		&exp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Experience{}, err
	}
	if err != nil {
		return domain.Experience{}, fmt.Errorf("scan experience: %w", err)
	}
	if len(scenesJSON) > 0 {
		if err := json.Unmarshal(scenesJSON, &exp.Scenes); err != nil {
			return domain.Experience{}, fmt.Errorf("unmarshal scenes: %w", err)
		}
	}
	return exp, nil
}
