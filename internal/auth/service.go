package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrCaregiverExists    = errors.New("auth: caregiver already registered")
)

// CaregiverStore is the persistence contract for staff accounts, narrowed to
// the two lookups auth needs. Unlike the teacher's UserRepository, there is
// no OAuth provider lookup and no OTP columns to manage.
type CaregiverStore interface {
	GetByEmail(ctx context.Context, email string) (Caregiver, error)
	Create(ctx context.Context, c Caregiver) error
}

// Service wires credential checking to token issuance, grounded on
// user_service.go's Authenticate flow minus its OTP and OAuth branches —
// ReMind has no patient signup, so every account here is provisioned by an
// administrator ahead of time.
type Service struct {
	store CaregiverStore
	jwt   *JWTService
}

func NewService(store CaregiverStore, jwt *JWTService) *Service {
	return &Service{store: store, jwt: jwt}
}

// Register provisions a new caregiver/therapist account with a bcrypt hash,
// mirroring user_service.go's CreateUser password path.
func (s *Service) Register(ctx context.Context, email, displayName, password string, role Role) (Caregiver, error) {
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return Caregiver{}, ErrCaregiverExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Caregiver{}, fmt.Errorf("hash password: %w", err)
	}
	c := Caregiver{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, c); err != nil {
		return Caregiver{}, fmt.Errorf("create caregiver: %w", err)
	}
	return c, nil
}

// Login verifies credentials and, on success, issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	c, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.jwt.IssuePair(ctx, c)
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return s.jwt.RefreshPair(ctx, refreshToken)
}

// Logout revokes every outstanding refresh token for the caregiver.
func (s *Service) Logout(ctx context.Context, caregiverID string) error {
	return s.jwt.RevokeAll(ctx, caregiverID)
}
