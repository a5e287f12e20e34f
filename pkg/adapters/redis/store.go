// Package redis keeps chat sessions and their locks in Redis, so several bot replicas can
// share one webhook.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/duzhibot/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the adapter writes.
const DefaultPrefix = "duzhibot:session:"

// noExpiry is the index score of sessions saved without a TTL (2100-01-01).
const noExpiry = 4102444800

// Hash fields of a session.
const (
	fieldPath    = "path"
	fieldData    = "data"
	fieldHistory = "history"
	fieldUpdated = "updated_at"
)

// Store implements ports.StateStore using Redis.
//
// Each session is a hash under prefix+id with one field per column: the path stays readable
// with HGET, data and history are JSON. A sorted set under prefix+"index" scores ids by expiry
// so List can skip sessions Redis has already dropped.
type Store struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithTTL expires sessions ttl after their last save.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithClock overrides the clock used to score the index.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New connects to a single Redis server.
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient uses an existing client, which may be a cluster or failover client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(sessionID string) string { return s.prefix + sessionID }

func (s *Store) indexKey() string { return s.prefix + "index" }

// expiry returns the index score of a session saved now.
func (s *Store) expiry() float64 {
	if s.ttl <= 0 {
		return noExpiry
	}
	return float64(s.now().Add(s.ttl).Unix())
}

// Save writes every field of state and refreshes its expiry in one transaction.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	data, err := json.Marshal(state.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	history, err := json.Marshal(state.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	key := s.key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			fieldPath:    state.Path,
			fieldData:    data,
			fieldHistory: history,
			fieldUpdated: state.UpdatedAt.UTC().Format(time.RFC3339Nano),
		})
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		} else {
			pipe.Persist(ctx, key)
		}
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.expiry(), Member: sessionID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	return nil
}

// Load reads the session hash back into a State.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	state := &domain.State{SessionID: sessionID, Path: fields[fieldPath]}
	if err := unmarshalField(fields, fieldData, &state.Data); err != nil {
		return nil, err
	}
	if err := unmarshalField(fields, fieldHistory, &state.History); err != nil {
		return nil, err
	}
	if ts := fields[fieldUpdated]; ts != "" {
		if state.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("session %s: bad %s: %w", sessionID, fieldUpdated, err)
		}
	}
	if state.Data == nil {
		state.Data = make(map[string]string)
	}
	return state, nil
}

func unmarshalField(fields map[string]string, name string, v any) error {
	raw := fields[name]
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("bad session field %s: %w", name, err)
	}
	return nil
}

// Delete removes the session and its index entry.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.ZRem(ctx, s.indexKey(), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// List returns the ids of sessions that have not expired and prunes the rest from the index.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := strconv.FormatInt(s.now().Unix(), 10)
	var live *backend.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now)
		live = pipe.ZRange(ctx, s.indexKey(), 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return live.Val(), nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
