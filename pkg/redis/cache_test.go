package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisCache_RequiresHost(t *testing.T) {
	_, err := NewRedisCache(&Config{})
	assert.Error(t, err)

	_, err = NewRedisCache(nil)
	assert.Error(t, err)
}

func TestRedisCache_GetSetTTL(t *testing.T) {
	host := os.Getenv("TEST_REDIS_HOST")
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" || host == "" {
		t.Skip("Skipping Redis test. Set RUN_INTEGRATION_TESTS=true and TEST_REDIS_HOST to run it")
	}

	cache, err := NewRedisCache(&Config{Host: host, Port: os.Getenv("TEST_REDIS_PORT")})
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	key := "rl:test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = cache.Delete(ctx, key) })

	v, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "", v, "missing key reads as empty")

	require.NoError(t, cache.Set(ctx, key, "1", time.Hour))

	v, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	ttl, err := cache.GetClient().TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)
}
