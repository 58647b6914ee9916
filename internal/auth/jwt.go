package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultAccessTokenTTL and DefaultRefreshTokenTTL mirror jwt_service.go's
// pair lifetimes. NewJWTService always uses them, and NewJWTServiceWithTTLs
// falls back to them for a zero or negative duration.
// ReMind's caregiver sessions are long-lived since shifts run for hours.
const (
	DefaultAccessTokenTTL  = 2 * time.Hour
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("auth: invalid or expired token")
	ErrWrongTokenType = errors.New("auth: wrong token type")
)

// Claims is the JWT payload. TokenType discriminates access from refresh the
// same way jwt_service.go's Claims does.
type Claims struct {
	jwt.RegisteredClaims
	CaregiverID string `json:"caregiver_id"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	TokenType   string `json:"token_type"`
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RefreshTokenStore tracks issued refresh tokens so they can be revoked,
// narrowed to the three operations JWTService needs, the same way
// refresh_token_store.go splits storage behind an interface so both an
// in-memory and a Redis implementation can back it.
type RefreshTokenStore interface {
	Put(ctx context.Context, caregiverID, tokenID string, ttl time.Duration) error
	Consume(ctx context.Context, caregiverID, tokenID string) (bool, error)
	Revoke(ctx context.Context, caregiverID string) error
}

// JWTService issues and validates caregiver/therapist token pairs.
type JWTService struct {
	secret     []byte
	store      RefreshTokenStore
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTService builds a JWTService with the default token lifetimes.
func NewJWTService(secret string, store RefreshTokenStore) *JWTService {
	return NewJWTServiceWithTTLs(secret, DefaultAccessTokenTTL, DefaultRefreshTokenTTL, store)
}

// NewJWTServiceWithTTLs lets the caller override the pair lifetimes (wired
// from JWT_ACCESS_TTL_MINUTES / JWT_REFRESH_TTL_HOURS in C12's config),
// following jwt_service.go's NewJWTServiceWithStore shape.
func NewJWTServiceWithTTLs(secret string, accessTTL, refreshTTL time.Duration, store RefreshTokenStore) *JWTService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &JWTService{secret: []byte(secret), store: store, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssuePair mints an access+refresh token pair for a caregiver, registering
// the refresh token's jti with the store so it can later be consumed exactly
// once and revoked on demand.
func (s *JWTService) IssuePair(ctx context.Context, c Caregiver) (TokenPair, error) {
	now := time.Now().UTC()

	access, accessExp, err := s.sign(c, tokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.sign(c, tokenTypeRefresh, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	claims, err := s.parse(refresh)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Put(ctx, c.ID, claims.ID, s.refreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("register refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: accessExp}, nil
}

// ParseAccessToken validates a bearer token and returns its claims. This is
// the call the HTTP middleware makes on every protected request.
func (s *JWTService) ParseAccessToken(token string) (Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, ErrWrongTokenType
	}
	return claims, nil
}

// RefreshPair consumes a refresh token exactly once and issues a new pair,
// rejecting replay the same way jwt_service.go's RefreshPair does.
func (s *JWTService) RefreshPair(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return TokenPair{}, ErrWrongTokenType
	}
	ok, err := s.store.Consume(ctx, claims.CaregiverID, claims.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("consume refresh token: %w", err)
	}
	if !ok {
		return TokenPair{}, ErrInvalidToken
	}
	return s.IssuePair(ctx, Caregiver{ID: claims.CaregiverID, Email: claims.Email, Role: claims.Role})
}

// RevokeAll invalidates every outstanding refresh token for a caregiver, for
// use on password change or account lockout.
func (s *JWTService) RevokeAll(ctx context.Context, caregiverID string) error {
	return s.store.Revoke(ctx, caregiverID)
}

func (s *JWTService) sign(c Caregiver, tokenType string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        newJTI(),
		},
		CaregiverID: c.ID,
		Email:       c.Email,
		Role:        c.Role,
		TokenType:   tokenType,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *JWTService) parse(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// newJTI generates a refresh token identifier, reusing the same uuid
// dependency already wired for domain record IDs elsewhere.
func newJTI() string {
	return uuid.NewString()
}

// InMemoryRefreshTokenStore is the default store for single-instance
// deployments, mirroring refresh_token_store.go's memoryRefreshTokenStore.
type InMemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]map[string]time.Time
}

func NewInMemoryRefreshTokenStore() *InMemoryRefreshTokenStore {
	return &InMemoryRefreshTokenStore{tokens: make(map[string]map[string]time.Time)}
}

func (s *InMemoryRefreshTokenStore) Put(ctx context.Context, caregiverID, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[caregiverID] == nil {
		s.tokens[caregiverID] = make(map[string]time.Time)
	}
	s.tokens[caregiverID][tokenID] = time.Now().UTC().Add(ttl)
	return nil
}

func (s *InMemoryRefreshTokenStore) Consume(ctx context.Context, caregiverID, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byToken := s.tokens[caregiverID]
	if byToken == nil {
		return false, nil
	}
	exp, ok := byToken[tokenID]
	if !ok {
		return false, nil
	}
	delete(byToken, tokenID)
	if time.Now().UTC().After(exp) {
		return false, nil
	}
	return true, nil
}

func (s *InMemoryRefreshTokenStore) Revoke(ctx context.Context, caregiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, caregiverID)
	return nil
}

// redisTokenCmds is the slice of *redis.Client this store calls, narrowed the
// same way cache.redisKV is so tests can substitute a fake.
type redisTokenCmds interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRefreshTokenStore backs refresh tokens with Redis so revocation works
// across a fleet of API instances, mirroring redisRefreshTokenStore.
type RedisRefreshTokenStore struct {
	client redisTokenCmds
	prefix string
}

func NewRedisRefreshTokenStore(client *redis.Client) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{client: client, prefix: "remind:refresh:"}
}

func (s *RedisRefreshTokenStore) key(caregiverID, tokenID string) string {
	return s.prefix + caregiverID + ":" + tokenID
}

func (s *RedisRefreshTokenStore) Put(ctx context.Context, caregiverID, tokenID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(caregiverID, tokenID), "1", ttl).Err()
}

func (s *RedisRefreshTokenStore) Consume(ctx context.Context, caregiverID, tokenID string) (bool, error) {
	_, err := s.client.GetDel(ctx, s.key(caregiverID, tokenID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisRefreshTokenStore) Revoke(ctx context.Context, caregiverID string) error {
	keys, err := s.client.Keys(ctx, s.prefix+caregiverID+":*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
