package notification

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 30 * time.Minute

// CaptainRateLimiter throttles notification creation per captain so one
// pilot cannot flood the panels. A zero rate disables limiting.
type CaptainRateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*captainLimiter
}

type captainLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewCaptainRateLimiter allows perMinute creations per captain with the given burst.
func NewCaptainRateLimiter(perMinute, burst int) *CaptainRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &CaptainRateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		limiters: make(map[string]*captainLimiter),
	}
}

// Allow reports whether captainID may create a notification at now.
// A nil limiter always allows.
func (l *CaptainRateLimiter) Allow(captainID string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[captainID]
	if !ok {
		entry = &captainLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[captainID] = entry
	}
	entry.lastSeen = now
	l.pruneLocked(now)
	return entry.limiter.AllowN(now, 1)
}

// pruneLocked drops limiters for captains that have been quiet for a while.
func (l *CaptainRateLimiter) pruneLocked(now time.Time) {
	for id, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, id)
		}
	}
}
