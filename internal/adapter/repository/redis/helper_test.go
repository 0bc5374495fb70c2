package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"

	"github.com/iho/betledger/internal/infrastructure/redis"
	"github.com/iho/betledger/internal/usecase"
)

var (
	_ usecase.IdempotencyStore = (*IdempotencyStore)(nil)
	_ usecase.AttributionStore = (*AttributionStore)(nil)
)

// newTestRedisClient returns a client connected to an in-process server that
// is torn down with the test. The server is returned for TTL fast-forwarding.
func newTestRedisClient(t *testing.T) (*redislib.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), redis.Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}
