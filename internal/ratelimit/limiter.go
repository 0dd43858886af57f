package ratelimit

import (
	"context"
	"fmt"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allower decides whether another request for key fits in the current window.
type Allower interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter is a process local fixed window limiter used when Redis is not configured.
type MemoryLimiter struct {
	inner *limiter.Limiter
	max   int
}

// NewMemoryLimiter allows max requests per window and key.
func NewMemoryLimiter(window time.Duration, max int) *MemoryLimiter {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "discount-ratelimit",
		CleanUpInterval: window,
	})
	return &MemoryLimiter{
		inner: limiter.New(store, limiter.Rate{Period: window, Limit: int64(max)}),
		max:   max,
	}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if m == nil || m.max <= 0 {
		return Decision{Allowed: true, Limit: 0}, nil
	}
	res, err := m.inner.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("memory limiter: %w", err)
	}
	return Decision{
		Allowed:   !res.Reached,
		Limit:     int(res.Limit),
		Remaining: int(res.Remaining),
		ResetAt:   time.Unix(res.Reset, 0),
	}, nil
}
