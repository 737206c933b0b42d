package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_MissingKeyIsEmpty(t *testing.T) {
	store := NewMemoryStore()

	v, err := store.Get(context.Background(), "rl:nobody")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestMemoryStore_ExpiresAtTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "1", time.Minute))

	clock.Advance(59 * time.Second)
	v, _ := store.Get(ctx, "k")
	assert.Equal(t, "1", v)

	clock.Advance(time.Second)
	v, _ = store.Get(ctx, "k")
	assert.Equal(t, "", v)
}

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	clock.Advance(365 * 24 * time.Hour)

	v, _ := store.Get(ctx, "k")
	assert.Equal(t, "v", v)
}

func TestMemoryStore_SweepDropsExpiredKeys(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, store.Set(ctx, "old-"+strconv.Itoa(i), "1", time.Second))
	}
	clock.Advance(time.Minute)

	for i := 0; i < 1024; i++ {
		_, _ = store.Get(ctx, "reader")
	}

	store.mu.Lock()
	remaining := len(store.entries)
	store.mu.Unlock()
	assert.Equal(t, 0, remaining)
}
