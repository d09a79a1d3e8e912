package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps completed task ids in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time // task id -> expiry, zero means never
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, entries: make(map[string]time.Time)}
}

// IsCompleted reports whether taskID was marked and has not expired.
func (s *MemoryStore) IsCompleted(_ context.Context, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.entries[taskID]
	if !ok {
		return false, nil
	}
	if !expires.IsZero() && !s.now().Before(expires) {
		delete(s.entries, taskID)
		return false, nil
	}
	return true, nil
}

// MarkCompleted records taskID. A ttl of zero or less never expires.
func (s *MemoryStore) MarkCompleted(_ context.Context, taskID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.entries[taskID] = expires
	return nil
}
