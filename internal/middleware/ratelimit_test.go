package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(2, 60)
	defer rl.Close()
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, rl.allowAt("k", now))
	assert.True(t, rl.allowAt("k", now))
	assert.False(t, rl.allowAt("k", now))
	// 60/min = one token per second
	assert.True(t, rl.allowAt("k", now.Add(1100*time.Millisecond)))
	assert.False(t, rl.allowAt("k", now.Add(1200*time.Millisecond)))
	assert.True(t, rl.allowAt("other", now))
}

func TestRateLimiter_MiddlewarePerCaller(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions/x/analyze", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:2000"), "same IP, other port")
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1000"))
}

func TestRateLimiter_RetryAfterHeader(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "31", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()
	rl.Allow("a")
	rl.evictIdle(time.Now().Add(11*time.Minute), 10*time.Minute)
	assert.Empty(t, rl.buckets)
}
