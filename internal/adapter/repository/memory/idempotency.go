package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iho/betledger/internal/usecase"
)

// IdempotencyStore implements usecase.IdempotencyStore in process.
// Used when no redis is configured; claims do not survive a restart.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
	now     func() time.Time
}

type idempotencyEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewIdempotencyStore creates an empty store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		entries: make(map[string]idempotencyEntry),
		now:     time.Now,
	}
}

// CheckAndSet claims key unless a live claim exists.
func (s *IdempotencyStore) CheckAndSet(_ context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return true, append([]byte(nil), e.value...), nil
	}

	value := response
	if value == nil {
		value = []byte(usecase.IdempotencyPending)
	}
	s.entries[key] = idempotencyEntry{value: append([]byte(nil), value...), expiresAt: now.Add(ttl)}
	return false, nil, nil
}

// Update stores the final response for key.
func (s *IdempotencyStore) Update(_ context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{value: append([]byte(nil), response...), expiresAt: s.now().Add(ttl)}
	return nil
}

// Release drops the claim on key.
func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
