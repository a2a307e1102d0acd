package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pizzeria-platform/internal/logger"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before retrying.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Limiter enforces a per-tenant sliding window over a Redis sorted set: one
// member per admitted request, scored by arrival time.
type Limiter struct {
	client *redis.Client
	logger *logger.Logger
}

// New creates a limiter backed by the given Redis client.
func New(client *redis.Client, log *logger.Logger) *Limiter {
	return &Limiter{client: client, logger: log}
}

// Check admits or rejects one request against the tenant's window. Admitted
// requests are recorded; rejected requests are not.
func (l *Limiter) Check(ctx context.Context, orgID uuid.UUID, endpoint string, maxRequests int, window time.Duration) (Decision, error) {
	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s:%s", orgID, endpoint)
	windowStart := now.Add(-window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit window query: %w", err)
	}

	count := int(countCmd.Val())
	if count >= maxRequests {
		resetAt := now.Add(window)
		if oldest := oldestCmd.Val(); len(oldest) > 0 {
			resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(window)
		}
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}

	pipe = l.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit window update: %w", err)
	}

	return Decision{
		Allowed:   true,
		Remaining: maxRequests - count - 1,
		ResetAt:   now.Add(window),
	}, nil
}
