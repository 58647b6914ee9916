package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

type fakeCaregiverStore struct {
	byEmail map[string]Caregiver
}

func newFakeCaregiverStore() *fakeCaregiverStore {
	return &fakeCaregiverStore{byEmail: make(map[string]Caregiver)}
}

func (s *fakeCaregiverStore) GetByEmail(ctx context.Context, email string) (Caregiver, error) {
	c, ok := s.byEmail[email]
	if !ok {
		return Caregiver{}, ErrNotFound
	}
	return c, nil
}

func (s *fakeCaregiverStore) Create(ctx context.Context, c Caregiver) error {
	s.byEmail[c.Email] = c
	return nil
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func TestJWTService_IssueAndParseAccess(t *testing.T) {
	svc := NewJWTService("secret", NewInMemoryRefreshTokenStore())
	c := Caregiver{ID: "c1", Email: "nurse@example.com", Role: RoleCaregiver}

	pair, err := svc.IssuePair(context.Background(), c)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}

	claims, err := svc.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.CaregiverID != "c1" || claims.Role != RoleCaregiver {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTService_RejectsRefreshTokenAsAccess(t *testing.T) {
	svc := NewJWTService("secret", NewInMemoryRefreshTokenStore())
	c := Caregiver{ID: "c1", Email: "nurse@example.com", Role: RoleCaregiver}

	pair, err := svc.IssuePair(context.Background(), c)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if _, err := svc.ParseAccessToken(pair.RefreshToken); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestJWTService_RefreshRotationRejectsReplay(t *testing.T) {
	svc := NewJWTService("secret", NewInMemoryRefreshTokenStore())
	c := Caregiver{ID: "c1", Email: "nurse@example.com", Role: RoleTherapist}
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, c)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	refreshed, err := svc.RefreshPair(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh pair: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Fatalf("expected a new access token")
	}

	if _, err := svc.RefreshPair(ctx, pair.RefreshToken); err == nil {
		t.Fatalf("expected replayed refresh token to be rejected")
	}
}

func TestJWTService_RevokeAllBlocksFurtherRefresh(t *testing.T) {
	svc := NewJWTService("secret", NewInMemoryRefreshTokenStore())
	c := Caregiver{ID: "c1", Email: "nurse@example.com", Role: RoleCaregiver}
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, c)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if err := svc.RevokeAll(ctx, c.ID); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if _, err := svc.RefreshPair(ctx, pair.RefreshToken); err == nil {
		t.Fatalf("expected refresh to fail after revocation")
	}
}

func TestService_LoginSucceedsWithCorrectPassword(t *testing.T) {
	store := newFakeCaregiverStore()
	store.byEmail["nurse@example.com"] = Caregiver{
		ID:           "c1",
		Email:        "nurse@example.com",
		PasswordHash: mustHash(t, "correct horse"),
		Role:         RoleCaregiver,
	}
	svc := NewService(store, NewJWTService("secret", NewInMemoryRefreshTokenStore()))

	pair, err := svc.Login(context.Background(), "nurse@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatalf("expected access token")
	}
}

func TestService_LoginRejectsWrongPassword(t *testing.T) {
	store := newFakeCaregiverStore()
	store.byEmail["nurse@example.com"] = Caregiver{
		ID:           "c1",
		Email:        "nurse@example.com",
		PasswordHash: mustHash(t, "correct horse"),
		Role:         RoleCaregiver,
	}
	svc := NewService(store, NewJWTService("secret", NewInMemoryRefreshTokenStore()))

	if _, err := svc.Login(context.Background(), "nurse@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_LoginRejectsUnknownEmail(t *testing.T) {
	store := newFakeCaregiverStore()
	svc := NewService(store, NewJWTService("secret", NewInMemoryRefreshTokenStore()))

	if _, err := svc.Login(context.Background(), "ghost@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestService_RegisterRejectsDuplicateEmail(t *testing.T) {
	store := newFakeCaregiverStore()
	svc := NewService(store, NewJWTService("secret", NewInMemoryRefreshTokenStore()))
	ctx := context.Background()

	if _, err := svc.Register(ctx, "nurse@example.com", "Nurse Joy", "password123", RoleCaregiver); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "nurse@example.com", "Nurse Joy", "password123", RoleCaregiver); !errors.Is(err, ErrCaregiverExists) {
		t.Fatalf("expected ErrCaregiverExists, got %v", err)
	}
}
