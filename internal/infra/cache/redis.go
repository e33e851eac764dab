package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

// Connect aceita URL redis:// ou host:porta e testa o Ping.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisReputationCache guarda a classificação de reviews por fingerprint.
type RedisReputationCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ usecase.ReputationCache = (*RedisReputationCache)(nil)

func NewRedisReputationCache(client *redis.Client, ttl time.Duration) *RedisReputationCache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisReputationCache{client: client, ttl: ttl}
}

func (c *RedisReputationCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, "pipeline:"+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisReputationCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, "pipeline:"+key, value, c.ttl).Err()
}

// RedisRateLimiter: janela fixa com INCR + EXPIRE, compartilhada entre réplicas.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

// Allow falha aberto: Redis fora do ar não derruba o chat.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := "pipeline:ratelimit:" + key
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		p.ExpireNX(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return true
	}
	return incr.Val() <= int64(l.limit)
}
