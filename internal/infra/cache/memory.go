package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xavierca1/prospect-pipeline/internal/usecase"
)

// RateLimiter em memória, por chave (IP ou token), janela fixa.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
}

type visitor struct {
	count     int
	lastReset time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(_ context.Context, key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[key] = &visitor{count: 1, lastReset: now}
		return rl.limit > 0
	}

	v.count++
	return v.count <= rl.limit
}

// Cleanup remove chaves paradas há mais de duas janelas; roda até ctx terminar.
func (rl *RateLimiter) Cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, v := range rl.visitors {
				if now.Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// MemoryReputationCache é o fallback sem Redis.
type MemoryReputationCache struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ usecase.ReputationCache = (*MemoryReputationCache)(nil)

func NewMemoryReputationCache() *MemoryReputationCache {
	return &MemoryReputationCache{data: make(map[string]string)}
}

func (c *MemoryReputationCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *MemoryReputationCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}
