package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/betledger/internal/usecase"
)

const idempotencyPrefix = "betledger:idem:"

// claimScript sets KEYS[1] when absent and otherwise returns the stored
// value, in a single round trip.
var claimScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return false
end
return redis.call("GET", KEYS[1])
`)

// releaseScript drops KEYS[1] only while it still holds the pending marker,
// so a completed response is never discarded.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyStore keeps Idempotency-Key claims and cached responses in Redis
// so replays are answered by any instance.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// CheckAndSet claims key. It returns (true, stored) when the key was already
// claimed, or (false, nil) when this call won.
func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	value := response
	if value == nil {
		value = []byte(usecase.IdempotencyPending)
	}

	existing, err := claimScript.Run(ctx, s.client, []string{idempotencyPrefix + key}, value, ttl.Milliseconds()).Text()
	if errors.Is(err, redis.Nil) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, []byte(existing), nil
}

// Update stores the final response under a key this instance claimed. A key
// that expired in the meantime is not recreated.
func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return s.client.SetXX(ctx, idempotencyPrefix+key, response, ttl).Err()
}

// Release drops a pending claim so a failed request can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, s.client, []string{idempotencyPrefix + key}, usecase.IdempotencyPending).Err()
}
