package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-course-creator/internal/platform/cache"
)

// budgetTTL keeps a day's counter around long enough to cover clock skew
// between replicas.
const budgetTTL = 48 * time.Hour

// BudgetChecker checks and records generation token usage per user per day.
type BudgetChecker interface {
	// Check returns ErrBudgetExceeded once the user has spent today's budget.
	Check(ctx context.Context, userID string) error
	// Record adds tokens to the user's usage for today.
	Record(ctx context.Context, userID string, tokens int) error
}

// NoBudget never limits generation.
type NoBudget struct{}

func (NoBudget) Check(context.Context, string) error       { return nil }
func (NoBudget) Record(context.Context, string, int) error { return nil }

// InMemoryBudget is a single-process daily budget tracker for development
// and tests. A limit of zero or less means unlimited.
type InMemoryBudget struct {
	mu    sync.RWMutex
	limit int64
	usage map[string]int64 // day:user -> tokens used
	now   func() time.Time
}

// NewInMemoryBudget creates an in-memory tracker with a per-user daily limit.
func NewInMemoryBudget(limit int64) *InMemoryBudget {
	return &InMemoryBudget{
		limit: limit,
		usage: make(map[string]int64),
		now:   time.Now,
	}
}

func (b *InMemoryBudget) Check(_ context.Context, userID string) error {
	if b.limit <= 0 {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.usage[budgetKey(b.now(), userID)] >= b.limit {
		return ErrBudgetExceeded
	}
	return nil
}

func (b *InMemoryBudget) Record(_ context.Context, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.usage[budgetKey(b.now(), userID)] += int64(tokens)
	return nil
}

// Usage returns today's usage and the configured limit for a user.
func (b *InMemoryBudget) Usage(userID string) (used int64, limit int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[budgetKey(b.now(), userID)], b.limit
}

// RedisBudget shares daily token counters across replicas through Redis.
type RedisBudget struct {
	client *redis.Client
	limit  int64
	now    func() time.Time
}

// NewRedisBudget creates a Redis-backed tracker with a per-user daily limit.
func NewRedisBudget(client *redis.Client, limit int64) *RedisBudget {
	return &RedisBudget{client: client, limit: limit, now: time.Now}
}

func (b *RedisBudget) Check(ctx context.Context, userID string) error {
	if b.limit <= 0 {
		return nil
	}

	used, err := b.client.Get(ctx, b.key(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading token budget: %w", err)
	}
	if used >= b.limit {
		return ErrBudgetExceeded
	}
	return nil
}

func (b *RedisBudget) Record(ctx context.Context, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	if tokens == 0 {
		return nil
	}

	key := b.key(userID)
	pipe := b.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	pipe.Expire(ctx, key, budgetTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording token usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) key(userID string) string {
	return cache.Key("budget", b.now().UTC().Format(time.DateOnly), userID)
}

func budgetKey(now time.Time, userID string) string {
	return now.UTC().Format(time.DateOnly) + ":" + userID
}
