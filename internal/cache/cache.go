// Package cache implements the TTL cache (C10) sitting in front of memory
// search and LLM generation. It ships two Store implementations behind one
// interface — in-process and Redis — mirroring the dual-store shape the
// teacher uses for refresh tokens.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 30 * time.Minute

// Store is the cache contract: get-or-miss, set-with-ttl, a stats snapshot
// and a full wipe, backing the HTTP facade's cache-stats/cache-clear
// endpoints.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) error
}

// Stats is a point-in-time cache hit/miss snapshot.
type Stats struct {
	Hits   int64
	Misses int64
}

// Key builds the canonical cache key for a retrieval lookup: the topic,
// result count and filter are folded into one hash so equivalent queries
// collide on the same key regardless of map ordering.
func Key(normalizedTopic string, k int, filterCanonical string) string {
	sum := sha256.Sum256([]byte(normalizedTopic + ":" + itoa(k) + ":" + filterCanonical))
	return hex.EncodeToString(sum[:])
}

// PromptKey builds the canonical cache key for an LLM generation lookup.
func PromptKey(promptCanonical string) string {
	sum := sha256.Sum256([]byte(promptCanonical))
	return hex.EncodeToString(sum[:])
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// InMemoryStore is a single-process TTL cache with lazy purge: expired
// entries are dropped on the next Get/Set that touches them rather than by
// a background sweep.
type InMemoryStore struct {
	mu     sync.Mutex
	items  map[string]entry
	hits   int64
	misses int64
}

type entry struct {
	value   []byte
	expires time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]entry)}
}

func (s *InMemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		s.misses++
		return nil, false, nil
	}
	if time.Now().UTC().After(e.expires) {
		delete(s.items, key)
		s.misses++
		return nil, false, nil
	}
	s.hits++
	return e.value, true, nil
}

func (s *InMemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry{value: value, expires: time.Now().UTC().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Hits: s.hits, Misses: s.misses}, nil
}

// Clear empties the cache and resets its hit/miss counters.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]entry)
	s.hits = 0
	s.misses = 0
	return nil
}

// redisKV is the slice of *redis.Client this package actually calls, pulled
// out as an interface so tests can substitute a fake the way
// otp_rate_limiter_redis.go's redisEvaler does for Eval.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore is the Redis-backed Store, used when REDIS_ADDR is configured.
// Hit/miss counters live in two plain INCR keys rather than the Lua script
// the teacher uses for OTP rate limiting — there's no race to guard against
// here since each counter only ever moves in one direction.
type RedisStore struct {
	client redisKV
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "remind:cache:"}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		s.client.Incr(ctx, s.prefix+"stats:misses")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.client.Incr(ctx, s.prefix+"stats:hits")
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	hits, err := s.client.Get(ctx, s.prefix+"stats:hits").Int64()
	if err != nil && err != redis.Nil {
		return Stats{}, err
	}
	misses, err := s.client.Get(ctx, s.prefix+"stats:misses").Int64()
	if err != nil && err != redis.Nil {
		return Stats{}, err
	}
	return Stats{Hits: hits, Misses: misses}, nil
}

// Clear deletes every key under this store's prefix, including the hit/miss
// counters, so a cleared cache reports zero stats like a fresh InMemoryStore.
func (s *RedisStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	keys, err := s.client.Keys(ctx, s.prefix+"*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// NormalizeTopic lower-cases and trims a topic string so keys built from
// slightly different casing or whitespace still collide.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
