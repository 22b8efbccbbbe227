package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10.0, 5, "hub-main")

	require.NotNil(t, l)
	require.NotNil(t, l.limiter)
	assert.Equal(t, "hub-main", l.chain)

	rps, burst := l.Rate()
	assert.InDelta(t, 10.0, rps, 0.001)
	assert.Equal(t, 5, burst)
}

func TestLimiter_AllowWithinBurst(t *testing.T) {
	const burst = 5
	l := NewLimiter(100, burst, "hub-main")

	ctx := context.Background()

	// All sends within the burst capacity should succeed immediately.
	for i := 0; i < burst; i++ {
		start := time.Now()
		err := l.Wait(ctx)
		elapsed := time.Since(start)

		require.NoError(t, err, "send %d should not error", i)
		assert.Less(t, elapsed, 50*time.Millisecond,
			"send %d should complete immediately, took %v", i, elapsed)
	}
}

func TestLimiter_WaitWhenExhausted(t *testing.T) {
	// Use a very low RPS so that after burst is exhausted, the next send
	// must wait a noticeable amount of time.
	const (
		rps   = 10.0 // 1 token every 100ms
		burst = 1
	)
	l := NewLimiter(rps, burst, "spoke-alpha")

	ctx := context.Background()

	// First send consumes the only burst token, so it is immediate.
	err := l.Wait(ctx)
	require.NoError(t, err)

	// Second send blocks until a new token is available (~100ms).
	start := time.Now()
	err = l.Wait(ctx)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond,
		"should have waited for a token, but only took %v", elapsed)
}

func TestLimiter_ContextCancellation(t *testing.T) {
	const (
		rps   = 1.0 // 1 token per second
		burst = 1
	)
	l := NewLimiter(rps, burst, "hub-main")

	// Exhaust the burst token.
	err := l.Wait(context.Background())
	require.NoError(t, err)

	// Cancel before the next token becomes available.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = l.Wait(ctx)
	require.Error(t, err, "should return error when context is cancelled")
}

func TestLimiter_SetRate(t *testing.T) {
	l := NewLimiter(1, 1, "hub-main")

	l.SetRate(500, 50)
	rps, burst := l.Rate()
	assert.InDelta(t, 500.0, rps, 0.001)
	assert.Equal(t, 50, burst)

	// Non-positive values leave the current settings alone.
	l.SetRate(0, -1)
	rps, burst = l.Rate()
	assert.InDelta(t, 500.0, rps, 0.001)
	assert.Equal(t, 50, burst)
}
