// Package memory provides in-process implementations of the durable store
// ports, for tests and single-process deployments.
package memory

import (
	"context"
	"sync"

	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
)

func key(user, requestID string) string {
	return user + "/" + requestID
}

// KillStore is an in-memory ports.KillStore.
type KillStore struct {
	mu      sync.RWMutex
	records map[string]domain.KillRecord
}

var _ ports.KillStore = (*KillStore)(nil)

// NewKillStore creates an empty store.
func NewKillStore() *KillStore {
	return &KillStore{records: make(map[string]domain.KillRecord)}
}

func (s *KillStore) Get(ctx context.Context, user, requestID string) (*domain.KillRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key(user, requestID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (s *KillStore) Put(ctx context.Context, rec domain.KillRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key(rec.User, rec.RequestID)] = rec
	return nil
}

func (s *KillStore) Delete(ctx context.Context, user, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key(user, requestID))
	return nil
}

// ResumeStore is an in-memory ports.ResumeStore.
type ResumeStore struct {
	mu      sync.RWMutex
	records map[string]domain.ResumptionRecord
}

var _ ports.ResumeStore = (*ResumeStore)(nil)

// NewResumeStore creates an empty store.
func NewResumeStore() *ResumeStore {
	return &ResumeStore{records: make(map[string]domain.ResumptionRecord)}
}

func (s *ResumeStore) Save(ctx context.Context, user, requestID string, rec domain.ResumptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key(user, requestID)] = rec
	return nil
}

func (s *ResumeStore) Load(ctx context.Context, user, requestID string) (domain.ResumptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key(user, requestID)]
	if !ok {
		return domain.ResumptionRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *ResumeStore) Delete(ctx context.Context, user, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key(user, requestID))
	return nil
}
