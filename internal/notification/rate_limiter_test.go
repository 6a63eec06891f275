package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCaptainRateLimiterDisabled(t *testing.T) {
	t.Parallel()

	var limiter *CaptainRateLimiter
	assert.Nil(t, NewCaptainRateLimiter(0, 5))
	for range 100 {
		assert.True(t, limiter.Allow("captain-1", testEpoch))
	}
}

func TestCaptainRateLimiterBurstAndRefill(t *testing.T) {
	t.Parallel()

	limiter := NewCaptainRateLimiter(6, 2)

	assert.True(t, limiter.Allow("captain-1", testEpoch))
	assert.True(t, limiter.Allow("captain-1", testEpoch))
	assert.False(t, limiter.Allow("captain-1", testEpoch))

	// Other captains have their own budget.
	assert.True(t, limiter.Allow("captain-2", testEpoch))

	// 6 per minute refills one token every 10s.
	assert.False(t, limiter.Allow("captain-1", testEpoch.Add(5*time.Second)))
	assert.True(t, limiter.Allow("captain-1", testEpoch.Add(11*time.Second)))
}

func TestCaptainRateLimiterPrunesIdleCaptains(t *testing.T) {
	t.Parallel()

	limiter := NewCaptainRateLimiter(60, 1)
	limiter.Allow("captain-1", testEpoch)
	limiter.Allow("captain-2", testEpoch)

	limiter.Allow("captain-3", testEpoch.Add(limiterIdleTTL+time.Minute))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.limiters, 1)
	assert.Contains(t, limiter.limiters, "captain-3")
}
