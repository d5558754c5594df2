package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "accountmap:ratelimit:"

// Counter increments key within a fixed window and returns the new count
// and the time left until the window resets.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisCounter implements Counter with INCR, setting the expiry when the
// window opens.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	left, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	// A key left without expiry (Expire failed after Incr) would never reset.
	if left < 0 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		left = window
	}
	return count, left, nil
}

// RateLimit allows limit requests per scope, client IP and window. The scope
// names the limited operation so every mount of a route shares one budget.
// Counter failures let the request through.
func RateLimit(counter Counter, scope string, limit int, window time.Duration, m *Metrics, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := rateLimitKeyPrefix + scope + ":" + clientIP(r)

			count, left, err := counter.Incr(ctx, key, window)
			if err != nil {
				log.Warn(ctx, "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(left).Unix(), 10))

			if count > int64(limit) {
				if m != nil {
					m.rateHits.Inc()
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(left.Round(time.Second).Seconds())))
				writeMessage(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP reads RemoteAddr, which middleware.RealIP has already rewritten
// from the forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
