package security

import (
	"net/http"
	"strings"
	"time"

	"ticket-ledger/logger"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

const PrincipalHeader = "X-Principal"

// RateLimiter counts requests per caller in fixed redis windows.
type RateLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient redis.Cmdable, limit int64, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// ScanRateLimit throttles check-in scans per gate principal, or per IP when
// the caller is anonymous. Redis failures let the request through.
func (r *RateLimiter) ScanRateLimit(e *core.RequestEvent) error {
	if r.limit <= 0 {
		return e.Next()
	}

	ctx := e.Request.Context()
	key := "ratelimit:scan:" + identifier(e)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		logger.Warnf(ctx, "rate limit: %v", err)
		return e.Next()
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	if count > r.limit {
		return e.JSON(http.StatusTooManyRequests, map[string]string{
			"code":    "rate_limited",
			"message": "Rate limit exceeded. Please try again later.",
		})
	}
	return e.Next()
}

// AntiBot rejects clients announcing themselves as crawlers.
func AntiBot(e *core.RequestEvent) error {
	if isSuspiciousUserAgent(e.Request.UserAgent()) {
		return e.JSON(http.StatusForbidden, map[string]string{
			"code":    "forbidden",
			"message": "Access denied",
		})
	}
	return e.Next()
}

func identifier(e *core.RequestEvent) string {
	if p := e.Request.Header.Get(PrincipalHeader); p != "" {
		return "user:" + p
	}
	return "ip:" + e.RemoteIP()
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
