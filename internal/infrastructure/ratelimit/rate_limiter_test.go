package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowExhaustsBurstThenRefills(t *testing.T) {
	rl := NewRateLimiterWithPolicies(map[string]Policy{
		ActionSendMessage: {Burst: 2, Every: time.Second},
	})
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	ok, _ := rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)

	ok, wait := rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)
	assert.InDelta(t, time.Second, wait, float64(10*time.Millisecond))

	// other users have their own bucket
	ok, _ = rl.Allow("u2", ActionSendMessage)
	assert.True(t, ok)

	clock = clock.Add(time.Second)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter()
	clock := time.Now()
	rl.now = func() time.Time { return clock }

	rl.Allow("u1", ActionTyping)
	clock = clock.Add(2 * time.Hour)
	rl.Cleanup()

	assert.Empty(t, rl.buckets)
}
