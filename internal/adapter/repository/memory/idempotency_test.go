package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/betledger/internal/usecase"
)

func TestIdempotencyStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewIdempotencyStore()
	s.now = func() time.Time { return now }

	exists, _, err := s.CheckAndSet(ctx, "k", nil, time.Minute)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, val, err := s.CheckAndSet(ctx, "k", nil, time.Minute)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, usecase.IsIdempotencyPending(val))

	require.NoError(t, s.Update(ctx, "k", []byte(`{"ok":true}`), time.Minute))
	_, val, _ = s.CheckAndSet(ctx, "k", nil, time.Minute)
	assert.JSONEq(t, `{"ok":true}`, string(val))

	now = now.Add(2 * time.Minute)
	exists, _, err = s.CheckAndSet(ctx, "k", nil, time.Minute)
	require.NoError(t, err)
	assert.False(t, exists, "expired claims are reclaimable")

	require.NoError(t, s.Release(ctx, "k"))
	exists, _, _ = s.CheckAndSet(ctx, "k", nil, time.Minute)
	assert.False(t, exists)
}
