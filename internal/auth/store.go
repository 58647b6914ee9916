package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by PgCaregiverStore when no row matches.
var ErrNotFound = errors.New("auth: caregiver not found")

// PgCaregiverStore implements CaregiverStore over a caregivers table,
// following user_repo.go's plain pgxpool query shape minus every OTP/OAuth
// column the teacher's users table carries.
type PgCaregiverStore struct {
	pool *pgxpool.Pool
}

func NewPgCaregiverStore(pool *pgxpool.Pool) *PgCaregiverStore {
	return &PgCaregiverStore{pool: pool}
}

func (s *PgCaregiverStore) Create(ctx context.Context, c Caregiver) error {
	const query = `
		INSERT INTO caregivers (id, email, display_name, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query, c.ID, c.Email, c.DisplayName, c.PasswordHash, c.Role, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert caregiver: %w", err)
	}
	return nil
}

func (s *PgCaregiverStore) GetByEmail(ctx context.Context, email string) (Caregiver, error) {
	const query = `
		SELECT id, email, display_name, password_hash, role, created_at
		FROM caregivers
		WHERE email = $1
	`
	row := s.pool.QueryRow(ctx, query, email)

	var c Caregiver
	if err := row.Scan(&c.ID, &c.Email, &c.DisplayName, &c.PasswordHash, &c.Role, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Caregiver{}, ErrNotFound
		}
		return Caregiver{}, fmt.Errorf("query caregiver by email: %w", err)
	}
	return c, nil
}
