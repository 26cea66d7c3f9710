package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage   = "send_message"
	ActionCreateRequest = "create_request"
	ActionTyping        = "typing"
)

// Policy is a token bucket shape: burst tokens, one token back every Every.
type Policy struct {
	Burst int
	Every time.Duration
}

var defaultPolicies = map[string]Policy{
	ActionSendMessage:   {Burst: 10, Every: 6 * time.Second}, // 10 messages per minute
	ActionCreateRequest: {Burst: 5, Every: 12 * time.Minute}, // 5 requests per hour
	ActionTyping:        {Burst: 30, Every: 2 * time.Second}, // 30 typing events per minute
}

var fallbackPolicy = Policy{Burst: 20, Every: 3 * time.Second}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one bucket per user and action.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*entry
	policies map[string]Policy
	now      func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithPolicies(nil)
}

// NewRateLimiterWithPolicies overrides the default policy for the given actions.
func NewRateLimiterWithPolicies(overrides map[string]Policy) *RateLimiter {
	policies := make(map[string]Policy, len(defaultPolicies)+len(overrides))
	for k, v := range defaultPolicies {
		policies[k] = v
	}
	for k, v := range overrides {
		policies[k] = v
	}
	return &RateLimiter{
		buckets:  make(map[string]*entry),
		policies: policies,
		now:      time.Now,
	}
}

// Allow consumes a token for the user action. When denied it returns how long
// the caller should wait before the next attempt.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	now := rl.now()
	limiter := rl.limiterFor(userID+":"+action, action, now)

	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) limiterFor(key, action string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.buckets[key]
	if !ok {
		policy, found := rl.policies[action]
		if !found {
			policy = fallbackPolicy
		}
		e = &entry{limiter: rate.NewLimiter(rate.Every(policy.Every), policy.Burst)}
		rl.buckets[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Cleanup drops buckets idle for longer than an hour.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, e := range rl.buckets {
		if now.Sub(e.lastSeen) > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) StartCleanupRoutine() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			rl.Cleanup()
		}
	}()
}
