// Package history implements the Conversation History store (C7): an
// ordered, per-(patient_id, topic) turn log truncated to a configured
// window, with per-key serialization so concurrent writers on the same key
// observe a total order.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgetmenot/remind/internal/domain"
)

const (
	DefaultWindowTurns = 10
	DefaultTTL         = 24 * time.Hour
)

// Stats is the summary returned by Store.Stats.
type Stats struct {
	PatientTurns int
	AgentTurns   int
	StartedAt    time.Time
	LastUpdated  time.Time
}

// Store is the Conversation History contract.
type Store interface {
	Append(ctx context.Context, patientID, topic string, role domain.TurnRole, message string) error
	Slice(ctx context.Context, patientID, topic string, maxTurns int) ([]domain.ConversationTurn, error)
	RecentAgent(ctx context.Context, patientID, topic string, n int) ([]string, error)
	Reset(ctx context.Context, patientID, topic string) error
	Stats(ctx context.Context, patientID, topic string) (Stats, error)
}

func key(patientID, topic string) string {
	return patientID + "\x00" + topic
}

// InMemoryStore keeps one ordered slice of turns per key. Append holds a
// per-key mutex across its whole read-modify-write, and the store-wide mu
// guards the shared map in every method.
type InMemoryStore struct {
	window time.Duration
	turns  int

	mu    sync.Mutex
	locks sync.Map // key -> *sync.Mutex
	data  map[string][]domain.ConversationTurn
	ttl   time.Duration
}

func NewInMemoryStore(windowTurns int, ttl time.Duration) *InMemoryStore {
	if windowTurns <= 0 {
		windowTurns = DefaultWindowTurns
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		turns: windowTurns,
		ttl:   ttl,
		data:  make(map[string][]domain.ConversationTurn),
	}
}

func (s *InMemoryStore) lockFor(k string) *sync.Mutex {
	actual, _ := s.locks.LoadOrStore(k, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (s *InMemoryStore) Append(ctx context.Context, patientID, topic string, role domain.TurnRole, message string) error {
	k := key(patientID, topic)
	lock := s.lockFor(k)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	turns := s.purgeLocked(k)
	turns = append(turns, domain.ConversationTurn{
		Timestamp: time.Now().UTC(),
		Role:      role,
		Message:   message,
		Topic:     topic,
	})
	if len(turns) > s.turns {
		turns = turns[len(turns)-s.turns:]
	}
	s.data[k] = turns
	s.mu.Unlock()
	return nil
}

// purgeLocked drops entries older than the TTL. Caller must hold s.mu.
func (s *InMemoryStore) purgeLocked(k string) []domain.ConversationTurn {
	turns := s.data[k]
	if len(turns) == 0 {
		return turns
	}
	cutoff := time.Now().UTC().Add(-s.ttl)
	i := 0
	for i < len(turns) && turns[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		turns = append([]domain.ConversationTurn(nil), turns[i:]...)
		s.data[k] = turns
	}
	return turns
}

func (s *InMemoryStore) Slice(ctx context.Context, patientID, topic string, maxTurns int) ([]domain.ConversationTurn, error) {
	k := key(patientID, topic)
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.purgeLocked(k)
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	out := make([]domain.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemoryStore) RecentAgent(ctx context.Context, patientID, topic string, n int) ([]string, error) {
	turns, err := s.Slice(ctx, patientID, topic, 0)
	if err != nil {
		return nil, err
	}
	var out []string
	for i := len(turns) - 1; i >= 0 && len(out) < n; i-- {
		if turns[i].Role == domain.RoleAgent {
			out = append([]string{turns[i].Message}, out...)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Reset(ctx context.Context, patientID, topic string) error {
	k := key(patientID, topic)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, k)
	return nil
}

func (s *InMemoryStore) Stats(ctx context.Context, patientID, topic string) (Stats, error) {
	turns, err := s.Slice(ctx, patientID, topic, 0)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for i, t := range turns {
		if t.Role == domain.RolePatient {
			st.PatientTurns++
		} else {
			st.AgentTurns++
		}
		if i == 0 {
			st.StartedAt = t.Timestamp
		}
		st.LastUpdated = t.Timestamp
	}
	return st, nil
}

// RedisStore persists the per-key turn log as a JSON-encoded list under one
// Redis key, using the key's own TTL (re-armed on every write) as the purge
// mechanism instead of scanning timestamps on read.
type RedisStore struct {
	client redisListKV
	prefix string
	window int
	ttl    time.Duration
}

type redisListKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewRedisStore(client *redis.Client, windowTurns int, ttl time.Duration) *RedisStore {
	if windowTurns <= 0 {
		windowTurns = DefaultWindowTurns
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: "remind:history:", window: windowTurns, ttl: ttl}
}

func (s *RedisStore) load(ctx context.Context, k string) ([]domain.ConversationTurn, error) {
	raw, err := s.client.Get(ctx, s.prefix+k).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var turns []domain.ConversationTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("unmarshal history for %s: %w", k, err)
	}
	return turns, nil
}

func (s *RedisStore) save(ctx context.Context, k string, turns []domain.ConversationTurn) error {
	raw, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal history for %s: %w", k, err)
	}
	return s.client.Set(ctx, s.prefix+k, raw, s.ttl).Err()
}

func (s *RedisStore) Append(ctx context.Context, patientID, topic string, role domain.TurnRole, message string) error {
	k := key(patientID, topic)
	turns, err := s.load(ctx, k)
	if err != nil {
		return err
	}
	turns = append(turns, domain.ConversationTurn{
		Timestamp: time.Now().UTC(),
		Role:      role,
		Message:   message,
		Topic:     topic,
	})
	if len(turns) > s.window {
		turns = turns[len(turns)-s.window:]
	}
	return s.save(ctx, k, turns)
}

func (s *RedisStore) Slice(ctx context.Context, patientID, topic string, maxTurns int) ([]domain.ConversationTurn, error) {
	turns, err := s.load(ctx, key(patientID, topic))
	if err != nil {
		return nil, err
	}
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	return turns, nil
}

func (s *RedisStore) RecentAgent(ctx context.Context, patientID, topic string, n int) ([]string, error) {
	turns, err := s.load(ctx, key(patientID, topic))
	if err != nil {
		return nil, err
	}
	var out []string
	for i := len(turns) - 1; i >= 0 && len(out) < n; i-- {
		if turns[i].Role == domain.RoleAgent {
			out = append([]string{turns[i].Message}, out...)
		}
	}
	return out, nil
}

func (s *RedisStore) Reset(ctx context.Context, patientID, topic string) error {
	return s.client.Del(ctx, s.prefix+key(patientID, topic)).Err()
}

func (s *RedisStore) Stats(ctx context.Context, patientID, topic string) (Stats, error) {
	turns, err := s.load(ctx, key(patientID, topic))
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for i, t := range turns {
		if t.Role == domain.RolePatient {
			st.PatientTurns++
		} else {
			st.AgentTurns++
		}
		if i == 0 {
			st.StartedAt = t.Timestamp
		}
		st.LastUpdated = t.Timestamp
	}
	return st, nil
}
