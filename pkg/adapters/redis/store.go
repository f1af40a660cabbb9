// Package redis implements the durable store ports on Redis, so kill
// signals and pause points are visible to every process serving a user.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

const (
	defaultKillPrefix   = "loom:kill:"
	defaultResumePrefix = "loom:resume:"
	defaultResumeTTL    = 24 * time.Hour
)

// KillStore implements ports.KillStore on Redis. Records carry their own
// TTL so an unconsumed kill signal cannot linger forever.
type KillStore struct {
	client *backend.Client
	prefix string
}

var _ ports.KillStore = (*KillStore)(nil)

// KillOption configures a KillStore.
type KillOption func(*KillStore)

// WithKillPrefix overrides the key prefix.
func WithKillPrefix(prefix string) KillOption {
	return func(s *KillStore) { s.prefix = prefix }
}

// NewKillStore creates a store from an existing client.
func NewKillStore(client *backend.Client, opts ...KillOption) *KillStore {
	s := &KillStore{client: client, prefix: defaultKillPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *KillStore) key(user, requestID string) string {
	return s.prefix + user + ":" + requestID
}

func (s *KillStore) Get(ctx context.Context, user, requestID string) (*domain.KillRecord, error) {
	val, err := s.client.Get(ctx, s.key(user, requestID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis get kill record: %w", err)
	}

	var rec domain.KillRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal kill record: %w", err)
	}
	return &rec, nil
}

func (s *KillStore) Put(ctx context.Context, rec domain.KillRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal kill record: %w", err)
	}
	ttl := rec.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := s.client.Set(ctx, s.key(rec.User, rec.RequestID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set kill record: %w", err)
	}
	return nil
}

func (s *KillStore) Delete(ctx context.Context, user, requestID string) error {
	if err := s.client.Del(ctx, s.key(user, requestID)).Err(); err != nil {
		return fmt.Errorf("redis delete kill record: %w", err)
	}
	return nil
}

// ResumeStore implements ports.ResumeStore on Redis.
type ResumeStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var _ ports.ResumeStore = (*ResumeStore)(nil)

// ResumeOption configures a ResumeStore.
type ResumeOption func(*ResumeStore)

// WithResumePrefix overrides the key prefix.
func WithResumePrefix(prefix string) ResumeOption {
	return func(s *ResumeStore) { s.prefix = prefix }
}

// WithResumeTTL sets how long paused runs remain resumable.
func WithResumeTTL(ttl time.Duration) ResumeOption {
	return func(s *ResumeStore) { s.ttl = ttl }
}

// NewResumeStore creates a store from an existing client.
func NewResumeStore(client *backend.Client, opts ...ResumeOption) *ResumeStore {
	s := &ResumeStore{client: client, prefix: defaultResumePrefix, ttl: defaultResumeTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ResumeStore) key(user, requestID string) string {
	return s.prefix + user + ":" + requestID
}

func (s *ResumeStore) Save(ctx context.Context, user, requestID string, rec domain.ResumptionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal resumption record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(user, requestID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set resumption record: %w", err)
	}
	return nil
}

func (s *ResumeStore) Load(ctx context.Context, user, requestID string) (domain.ResumptionRecord, error) {
	val, err := s.client.Get(ctx, s.key(user, requestID)).Result()
	if err != nil {
		if err == backend.Nil {
			return domain.ResumptionRecord{}, domain.ErrNotFound
		}
		return domain.ResumptionRecord{}, fmt.Errorf("redis get resumption record: %w", err)
	}

	var rec domain.ResumptionRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return domain.ResumptionRecord{}, fmt.Errorf("unmarshal resumption record: %w", err)
	}
	return rec, nil
}

func (s *ResumeStore) Delete(ctx context.Context, user, requestID string) error {
	if err := s.client.Del(ctx, s.key(user, requestID)).Err(); err != nil {
		return fmt.Errorf("redis delete resumption record: %w", err)
	}
	return nil
}
