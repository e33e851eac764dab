package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Testes contra Redis real. Rodam só com TEST_REDIS_URL definido.
func openTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL não definido")
	}
	client, err := Connect(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisRateLimiter_Window(t *testing.T) {
	client := openTestRedis(t)
	ctx := context.Background()
	rl := NewRedisRateLimiter(client, 2, time.Second)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), "pipeline:ratelimit:"+key) })

	assert.True(t, rl.Allow(ctx, key))
	assert.True(t, rl.Allow(ctx, key))
	assert.False(t, rl.Allow(ctx, key))
	assert.True(t, rl.Allow(ctx, key+":outro"), "chaves são independentes")

	ttl, err := client.TTL(ctx, "pipeline:ratelimit:"+key).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl, "a janela expira sozinha")

	require.Eventually(t, func() bool { return rl.Allow(ctx, key) }, 3*time.Second, 100*time.Millisecond)
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	rl := NewRedisRateLimiter(client, 0, time.Minute)
	assert.True(t, rl.Allow(context.Background(), "tok"), "Redis fora do ar não bloqueia o chat")
}

func TestRedisReputationCache(t *testing.T) {
	client := openTestRedis(t)
	ctx := context.Background()
	c := NewRedisReputationCache(client, time.Minute)
	key := "reputation:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), "pipeline:"+key) })

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, "price"))
	v, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "price", v)

	ttl, err := client.TTL(ctx, "pipeline:"+key).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestNewRedisReputationCache_DefaultTTL(t *testing.T) {
	c := NewRedisReputationCache(nil, 0)
	assert.Equal(t, 30*24*time.Hour, c.ttl)
}
