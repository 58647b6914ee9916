package http

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forgetmenot/remind/internal/auth"
)

type fakeCaregiverStore struct {
	byEmail map[string]auth.Caregiver
}

func newFakeCaregiverStore() *fakeCaregiverStore {
	return &fakeCaregiverStore{byEmail: make(map[string]auth.Caregiver)}
}

func (f *fakeCaregiverStore) GetByEmail(_ context.Context, email string) (auth.Caregiver, error) {
	c, ok := f.byEmail[email]
	if !ok {
		return auth.Caregiver{}, errors.New("not found")
	}
	return c, nil
}

func (f *fakeCaregiverStore) Create(_ context.Context, c auth.Caregiver) error {
	f.byEmail[c.Email] = c
	return nil
}

func setupAuthRouter(svc *auth.Service, jwtSvc *auth.JWTService) *gin.Engine {
	r := gin.New()
	h := NewAuthHandler(zap.NewNop(), svc)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", JWTAuthMiddleware(jwtSvc), h.Logout)
	return r
}

func TestAuthHandler_RegisterThenLogin(t *testing.T) {
	store := newFakeCaregiverStore()
	jwtSvc := auth.NewJWTService("test-secret", auth.NewInMemoryRefreshTokenStore())
	svc := auth.NewService(store, jwtSvc)
	r := setupAuthRouter(svc, jwtSvc)

	rec := performRequest(r, http.MethodPost, "/auth/register", map[string]string{
		"email": "nurse@example.com", "display_name": "Nurse Joy", "password": "hunter2", "role": "caregiver",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = performRequest(r, http.MethodPost, "/auth/login", map[string]string{
		"email": "nurse@example.com", "password": "hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(rec)
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestAuthHandler_LoginWrongPassword(t *testing.T) {
	store := newFakeCaregiverStore()
	jwtSvc := auth.NewJWTService("test-secret", auth.NewInMemoryRefreshTokenStore())
	svc := auth.NewService(store, jwtSvc)
	r := setupAuthRouter(svc, jwtSvc)

	performRequest(r, http.MethodPost, "/auth/register", map[string]string{
		"email": "nurse@example.com", "display_name": "Nurse Joy", "password": "hunter2", "role": "caregiver",
	})

	rec := performRequest(r, http.MethodPost, "/auth/login", map[string]string{
		"email": "nurse@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for untyped ErrInvalidCredentials, got %d", rec.Code)
	}
}

func TestAuthHandler_LogoutRequiresBearerToken(t *testing.T) {
	store := newFakeCaregiverStore()
	jwtSvc := auth.NewJWTService("test-secret", auth.NewInMemoryRefreshTokenStore())
	svc := auth.NewService(store, jwtSvc)
	r := setupAuthRouter(svc, jwtSvc)

	rec := performRequest(r, http.MethodPost, "/auth/logout", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestAuthHandler_Register_MissingFields(t *testing.T) {
	store := newFakeCaregiverStore()
	jwtSvc := auth.NewJWTService("test-secret", auth.NewInMemoryRefreshTokenStore())
	svc := auth.NewService(store, jwtSvc)
	r := setupAuthRouter(svc, jwtSvc)

	rec := performRequest(r, http.MethodPost, "/auth/register", map[string]string{"email": "a@b.com"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
