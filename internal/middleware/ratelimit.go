package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// bucket isi ulang kontinu: refill token per menit, maksimal capacity.
type bucket struct {
	tokens   float64
	last     time.Time
	lastUsed time.Time
}

func (b *bucket) take(now time.Time, capacity, perMinute float64) bool {
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens += elapsed.Minutes() * perMinute
		if b.tokens > capacity {
			b.tokens = capacity
		}
		b.last = now
	}
	b.lastUsed = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimiter keeps one bucket per caller (principal + IP). Only analysis
// starts are limited; every one of them costs an OCR call and a chat call.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	capacity  float64
	perMinute float64
	done      chan struct{}
	closeOnce sync.Once
}

func NewRateLimiter(capacity, refillPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		buckets:   make(map[string]*bucket),
		capacity:  float64(capacity),
		perMinute: float64(refillPerMinute),
		done:      make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Close stops the sweeper goroutine.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.allowAt(key, time.Now())
}

func (rl *RateLimiter) allowAt(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity, last: now}
		rl.buckets[key] = b
	}
	return b.take(now, rl.capacity, rl.perMinute)
}

// retryAfter is the wait, in whole seconds, until one token is back.
func (rl *RateLimiter) retryAfter() int {
	if rl.perMinute <= 0 {
		return 60
	}
	return int(60/rl.perMinute) + 1
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.evictIdle(now, 10*time.Minute)
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time, idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if now.Sub(b.lastUsed) > idle {
			delete(rl.buckets, key)
		}
	}
}

// Middleware limits every request it wraps; mount it on analysis start only.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := PrincipalFromContext(r.Context()) + ":" + clientIP(r)
		if !rl.Allow(key) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			http.Error(w, "too many analysis requests, please wait before trying again", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
