package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"messaging-service/internal/access"
	"messaging-service/internal/observability"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// FixedWindowLimiter limits requests per key in a fixed time window shared
// across instances through Redis.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 {
		return nil, errors.New("rate limiter requires a positive limit")
	}
	// Windows are counted in whole milliseconds.
	if window < time.Millisecond {
		return nil, errors.New("rate limiter window must be at least 1ms")
	}
	if client == nil {
		return nil, errors.New("rate limiter requires a redis client")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "messaging:ratelimit"
	}
	return &FixedWindowLimiter{limit: limit, window: window, client: client, prefix: prefix, now: time.Now}, nil
}

// Allow reports whether key is within quota. Redis failures fail closed.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	windowMs := l.window.Milliseconds()
	slot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return count <= int64(l.limit)
}

// RateLimit rejects callers over quota with 429. Authenticated callers are
// keyed by user id, anonymous ones by client IP. A nil limiter disables the
// check.
func RateLimit(limiter *FixedWindowLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := "ip:" + observability.IPFromRequest(c.Request)
		if actor := ActorFromContext(c); access.IsAuthenticated(actor) {
			key = "user:" + actor.UserID.String()
		}
		if !limiter.Allow(c.Request.Context(), key) {
			observability.IncRateLimited()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
