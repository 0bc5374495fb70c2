package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/betledger/internal/domain"
)

// AttributionStore implements usecase.AttributionStore using Redis.
// Records live under betledger:attribution:<address> and expire with their TTL.
type AttributionStore struct {
	client *redis.Client
	prefix string
}

// NewAttributionStore creates a new AttributionStore.
func NewAttributionStore(client *redis.Client) *AttributionStore {
	return &AttributionStore{
		client: client,
		prefix: "betledger:attribution:",
	}
}

// Save replaces the record for record.IP.
func (s *AttributionStore) Save(ctx context.Context, record *domain.AttributionRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode attribution record: %w", err)
	}

	return s.client.Set(ctx, s.prefix+record.IP, data, ttl).Err()
}

// Get returns the live record for ip or domain.ErrNotFound.
func (s *AttributionStore) Get(ctx context.Context, ip string) (*domain.AttributionRecord, error) {
	data, err := s.client.Get(ctx, s.prefix+ip).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var record domain.AttributionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode attribution record: %w", err)
	}

	return &record, nil
}
