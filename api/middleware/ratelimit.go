package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/localstall/stallmarket-backend/api/responses"
	pkgerrors "github.com/localstall/stallmarket-backend/pkg/errors"
	"github.com/localstall/stallmarket-backend/pkg/logger"
)

type limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimitPolicy names a bucket family and its limit.
type RateLimitPolicy struct {
	Name  string
	Limit redis_rate.Limit
	// KeyFunc picks the bucket; ClientKey when nil.
	KeyFunc func(*http.Request) string
}

// PerMinute builds a limit of n requests per minute with burst headroom.
func PerMinute(n, burst int) redis_rate.Limit {
	if burst <= 0 {
		burst = n
	}
	return redis_rate.Limit{Rate: n, Burst: burst, Period: time.Minute}
}

// RateLimit throttles requests with a redis GCRA limiter. When redis fails
// the request is counted by an in-process limiter instead. A nil limiter
// uses the in-process limiter only.
func RateLimit(l limiter, policy RateLimitPolicy, logg *logger.Logger) func(http.Handler) http.Handler {
	keyFunc := policy.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientKey
	}
	fallback := newLocalLimiter()
	return func(next http.Handler) http.Handler {
		if policy.Limit.Rate <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := "ratelimit:" + policy.Name + ":" + keyFunc(r)

			var res *redis_rate.Result
			var err error
			if l != nil {
				res, err = l.Allow(ctx, key, policy.Limit)
			}
			if l == nil || err != nil {
				if err != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "rate limiter unavailable; using local limiter")
				}
				res = fallback.allow(key, policy.Limit)
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit.Rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if res.Allowed == 0 {
				retry := int(res.RetryAfter.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				logg.Warn(logg.WithFields(ctx, map[string]any{"policy": policy.Name, "key": key}), "rate_limit.blocked")
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
					WithDetails(map[string]any{"retryAfterSeconds": retry}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey buckets authenticated callers by user and everyone else by IP.
func ClientKey(r *http.Request) string {
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// TODO: evict idle buckets; the map grows with distinct clients while redis is down.
type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{limiters: map[string]*rate.Limiter{}}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(limit.Rate)/limit.Period.Seconds()), limit.Burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1}
	if lim.Allow() {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration(float64(limit.Period) / float64(limit.Rate))
	}
	if remaining := int(lim.Tokens()); remaining > 0 {
		res.Remaining = remaining
	}
	return res
}
