package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iho/betledger/internal/domain"
)

// AttributionStore implements usecase.AttributionStore with lazy expiry.
type AttributionStore struct {
	mu      sync.RWMutex
	records map[string]storedRecord
	now     func() time.Time
}

type storedRecord struct {
	record    domain.AttributionRecord
	expiresAt time.Time
}

// NewAttributionStore creates an empty store.
func NewAttributionStore() *AttributionStore {
	return &AttributionStore{
		records: make(map[string]storedRecord),
		now:     time.Now,
	}
}

// Save replaces the record for record.IP.
func (s *AttributionStore) Save(_ context.Context, record *domain.AttributionRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.IP] = storedRecord{record: *record, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get returns the live record for ip.
func (s *AttributionStore) Get(_ context.Context, ip string) (*domain.AttributionRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[ip]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !s.now().Before(rec.expiresAt) {
		s.mu.Lock()
		delete(s.records, ip)
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	cp := rec.record
	return &cp, nil
}
