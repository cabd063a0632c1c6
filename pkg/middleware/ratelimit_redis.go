package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter is a fixed-window per-IP counter shared by every replica
// pointing at the same Redis.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows rps requests per second per client, counted over
// window. burst is added on top of each window's share.
func NewRedisLimiter(client redis.Cmdable, rps float64, burst int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Second
	}
	limit := int64(math.Ceil(rps*window.Seconds())) + int64(max(burst, 0))
	if limit < 1 {
		limit = 1
	}
	return &RedisLimiter{client: client, limit: limit, window: window, now: time.Now}
}

// Allow counts one request for ip and reports whether it is within the limit
// and, if not, how long until the window resets.
func (l *RedisLimiter) Allow(ctx context.Context, ip string) (bool, time.Duration, error) {
	now := l.now()
	start := now.Truncate(l.window)
	key := redisKeyPrefix + ip + ":" + strconv.FormatInt(start.Unix(), 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}

	if incr.Val() > l.limit {
		return false, start.Add(l.window).Sub(now), nil
	}
	return true, 0, nil
}

// RedisRateLimit is RateLimit backed by a shared RedisLimiter. When Redis
// cannot be reached requests are let through and the failure is logged.
func RedisRateLimit(l *RedisLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			ok, wait, err := l.Allow(r.Context(), ip)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limit store unavailable, allowing request",
					slog.String("ip", ip),
					slog.String("error", err.Error()),
				)
			}
			if !ok {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				secs := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
