package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. Used when Redis is not configured; sessions
// do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, id, subject string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.prune(now)
	s.records[id] = Record{Subject: subject, CreatedAt: now.UTC(), ExpiresAt: expiresAt.UTC()}
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok || !s.now().Before(record.ExpiresAt) {
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (s *MemoryStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// prune drops expired records; callers hold mu.
func (s *MemoryStore) prune(now time.Time) {
	for id, record := range s.records {
		if !now.Before(record.ExpiresAt) {
			delete(s.records, id)
		}
	}
}
