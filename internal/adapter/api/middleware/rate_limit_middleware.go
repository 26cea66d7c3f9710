package middleware

import (
	"fmt"
	"math"
	"time"

	"github.com/labstack/echo/v4"

	"neighborly/internal/infrastructure/ratelimit"
	"neighborly/pkg/errors"
	"neighborly/pkg/logger"
	"neighborly/pkg/response"
)

const actionHTTP = "http"

// IPRateLimiter applies one token bucket per client IP.
type IPRateLimiter struct {
	limiter *ratelimit.RateLimiter
}

// NewIPRateLimiter allows burst requests, refilled at perMinute per minute.
func NewIPRateLimiter(burst, perMinute int) *IPRateLimiter {
	return &IPRateLimiter{
		limiter: ratelimit.NewRateLimiterWithPolicies(map[string]ratelimit.Policy{
			actionHTTP: {Burst: burst, Every: time.Minute / time.Duration(perMinute)},
		}),
	}
}

func (rl *IPRateLimiter) RateLimitMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if allowed, wait := rl.limiter.Allow(ip, actionHTTP); !allowed {
				seconds := int(math.Ceil(wait.Seconds()))
				logger.Warn("RATE LIMIT: blocked request from IP %s (retry in %ds)", ip, seconds)
				c.Response().Header().Set("Retry-After", fmt.Sprint(seconds))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", nil))
			}
			return next(c)
		}
	}
}

// StartCleanupRoutine forgets idle IPs.
func (rl *IPRateLimiter) StartCleanupRoutine() {
	rl.limiter.StartCleanupRoutine()
}

// GeneralLimiter: 60 requests per minute with a burst of 60.
var GeneralLimiter = NewIPRateLimiter(60, 60)

func GeneralRateLimit() echo.MiddlewareFunc {
	return GeneralLimiter.RateLimitMiddleware()
}
