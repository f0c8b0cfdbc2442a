package ai

import (
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/pai-course-creator/internal/platform/cache/cachetest"
)

func TestInMemoryBudget_Unlimited(t *testing.T) {
	b := NewInMemoryBudget(0)

	if err := b.Record(t.Context(), "user1", 1_000_000); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := b.Check(t.Context(), "user1"); err != nil {
		t.Errorf("Check() error = %v, want nil (zero limit means unlimited)", err)
	}
}

func TestInMemoryBudget_Limits(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		recorded int
		wantErr  error
	}{
		{"within budget", 1000, 500, nil},
		{"exact budget", 100, 100, ErrBudgetExceeded},
		{"over budget", 100, 150, ErrBudgetExceeded},
		{"nothing spent", 100, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewInMemoryBudget(tt.limit)
			if err := b.Record(t.Context(), "user1", tt.recorded); err != nil {
				t.Fatalf("Record() error = %v", err)
			}
			if err := b.Check(t.Context(), "user1"); !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInMemoryBudget_PerUser(t *testing.T) {
	b := NewInMemoryBudget(100)
	b.Record(t.Context(), "user1", 100)

	if err := b.Check(t.Context(), "user2"); err != nil {
		t.Errorf("Check(user2) error = %v, want nil", err)
	}
	if used, limit := b.Usage("user1"); used != 100 || limit != 100 {
		t.Errorf("Usage(user1) = %d/%d, want 100/100", used, limit)
	}
}

func TestInMemoryBudget_ResetsDaily(t *testing.T) {
	b := NewInMemoryBudget(100)
	day := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return day }

	b.Record(t.Context(), "user1", 120)
	if err := b.Check(t.Context(), "user1"); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("Check() error = %v, want ErrBudgetExceeded", err)
	}

	day = day.Add(2 * time.Hour)
	if err := b.Check(t.Context(), "user1"); err != nil {
		t.Errorf("Check() next day error = %v, want nil", err)
	}
}

func TestInMemoryBudget_NegativeTokens(t *testing.T) {
	b := NewInMemoryBudget(100)
	if err := b.Record(t.Context(), "user1", -5); err == nil {
		t.Error("Record() should reject negative tokens")
	}
}

func TestNoBudget(t *testing.T) {
	var b BudgetChecker = NoBudget{}
	if err := b.Record(t.Context(), "user1", 10); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := b.Check(t.Context(), "user1"); err != nil {
		t.Errorf("Check() error = %v", err)
	}
}

func TestRedisBudget(t *testing.T) {
	c := cachetest.Start(t)
	ctx := t.Context()

	b := NewRedisBudget(c.Client, 100)
	if err := b.Check(ctx, "user1"); err != nil {
		t.Fatalf("Check() on fresh user error = %v", err)
	}

	if err := b.Record(ctx, "user1", 60); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := b.Check(ctx, "user1"); err != nil {
		t.Errorf("Check() at 60/100 error = %v", err)
	}

	if err := b.Record(ctx, "user1", 40); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := b.Check(ctx, "user1"); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Check() at 100/100 error = %v, want ErrBudgetExceeded", err)
	}

	ttl, err := c.Client.TTL(ctx, b.key("user1")).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > budgetTTL {
		t.Errorf("TTL = %v, want within (0, %v]", ttl, budgetTTL)
	}

	if err := b.Check(ctx, "user2"); err != nil {
		t.Errorf("Check(user2) error = %v, want nil", err)
	}
}
