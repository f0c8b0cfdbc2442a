package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-course-creator/internal/platform/cache"
)

// Revoker stores signed-out token ids until they expire.
type Revoker interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// MemoryRevoker is a process-local Revoker for development and tests.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevoker creates an empty in-memory denylist.
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevoker) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[id] = m.now().Add(ttl)
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[id]
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		delete(m.revoked, id)
		return false, nil
	}
	return true, nil
}

// RedisRevoker shares the denylist across replicas.
type RedisRevoker struct {
	client *redis.Client
}

// NewRedisRevoker creates a Redis-backed denylist.
func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func (r *RedisRevoker) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if err := r.client.Set(ctx, cache.Key("revoked", id), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke %s: %w", id, err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, cache.Key("revoked", id)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked %s: %w", id, err)
	}
	return n > 0, nil
}
