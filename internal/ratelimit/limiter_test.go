package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-platform/internal/logger"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, logger.New("test"))
}

func TestCheck_AllowsWithinWindow(t *testing.T) {
	limiter := newTestLimiter(t)
	orgID := uuid.New()

	for i := 0; i < 3; i++ {
		decision, err := limiter.Check(context.Background(), orgID, "place-order", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 2-i, decision.Remaining)
	}
}

func TestCheck_RejectsBeyondWindow(t *testing.T) {
	limiter := newTestLimiter(t)
	orgID := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := limiter.Check(context.Background(), orgID, "place-order", 2, time.Minute)
		require.NoError(t, err)
	}

	before := time.Now()
	decision, err := limiter.Check(context.Background(), orgID, "place-order", 2, time.Minute)
	require.NoError(t, err)

	assert.False(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	// Window resets one window-length after the oldest admitted request.
	assert.WithinDuration(t, before.Add(time.Minute), decision.ResetAt, 2*time.Second)
	assert.Greater(t, decision.RetryAfter(time.Now()), time.Duration(0))
}

func TestCheck_RejectionNotRecorded(t *testing.T) {
	limiter := newTestLimiter(t)
	orgID := uuid.New()

	_, err := limiter.Check(context.Background(), orgID, "place-order", 1, time.Minute)
	require.NoError(t, err)

	// Repeated rejections must not extend the window.
	for i := 0; i < 5; i++ {
		decision, err := limiter.Check(context.Background(), orgID, "place-order", 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	}
}

func TestCheck_TenantsIsolated(t *testing.T) {
	limiter := newTestLimiter(t)

	_, err := limiter.Check(context.Background(), uuid.New(), "place-order", 1, time.Minute)
	require.NoError(t, err)

	decision, err := limiter.Check(context.Background(), uuid.New(), "place-order", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
