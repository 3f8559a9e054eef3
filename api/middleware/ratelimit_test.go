package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localstall/stallmarket-backend/pkg/logger"
)

type fakeLimiter struct {
	keys    []string
	allowed bool
	err     error
}

func (f *fakeLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	res := &redis_rate.Result{Limit: limit, Remaining: limit.Burst - 1}
	if f.allowed {
		res.Allowed = 1
	} else {
		res.RetryAfter = 3 * time.Second
	}
	return res, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimitAllowsAndSetsHeaders(t *testing.T) {
	l := &fakeLimiter{allowed: true}
	policy := RateLimitPolicy{Name: "api", Limit: PerMinute(60, 10)}
	handler := RateLimit(l, policy, logger.Nop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), "user-1", "buyer"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"ratelimit:api:user:user-1"}, l.keys)
}

func TestRateLimitBlocksWithRetryAfter(t *testing.T) {
	handler := RateLimit(&fakeLimiter{}, RateLimitPolicy{Name: "auth", Limit: PerMinute(10, 0)}, logger.Nop())(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
}

func TestRateLimitFallsBackToLocalLimiter(t *testing.T) {
	l := &fakeLimiter{err: errors.New("redis down")}
	handler := RateLimit(l, RateLimitPolicy{Name: "auth", Limit: PerMinute(1, 1)}, logger.Nop())(okHandler())

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		return req
	}

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newReq())
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newReq())

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRateLimitNilLimiterUsesLocalBuckets(t *testing.T) {
	handler := RateLimit(nil, RateLimitPolicy{Name: "api", Limit: PerMinute(1, 1)}, logger.Nop())(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), "same-user", "buyer"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "request %d", i)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), uuid.NewString(), "buyer"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientKeyPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.2")
	assert.Equal(t, "ip:203.0.113.9", ClientKey(req))
}
