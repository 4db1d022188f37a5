package middleware

import (
	"net/http"
	"sync"
	"time"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleCutoff    = 10 * time.Minute
)

// RateLimiter is a token-bucket limiter keyed per caller. Requests carrying
// an account header are limited per tenant, so one tenant bursting cannot
// starve others arriving through the same proxy; anonymous requests fall
// back to per-IP buckets.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64 // tokens per second
	burst   float64
	now     func() time.Time
	swept   time.Time
}

type tokenBucket struct {
	tokens float64
	touched time.Time
}

// NewRateLimiter creates a limiter allowing rate requests/sec with the given
// burst size per caller.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   float64(burst),
		now:     time.Now,
	}
}

// Allow reports whether the caller identified by key is within its limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: rl.burst}
		rl.buckets[key] = b
	} else {
		b.tokens += now.Sub(b.touched).Seconds() * rl.rate
		if b.tokens > rl.burst {
			b.tokens = rl.burst
		}
	}
	b.touched = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweepLocked drops buckets idle past the cutoff so the map stays bounded.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.swept) < limiterSweepInterval {
		return
	}
	rl.swept = now
	cutoff := now.Add(-limiterIdleCutoff)
	for key, b := range rl.buckets {
		if b.touched.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// callerKey prefers the tenant account, then the client address resolved by
// chi's RealIP middleware.
func callerKey(r *http.Request) string {
	if accountID := r.Header.Get("X-Account-Id"); accountID != "" {
		return "account:" + accountID
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return "ip:" + xri
	}
	return "ip:" + r.RemoteAddr
}

// RateLimit rejects callers exceeding the configured rate with
// 429 Too Many Requests.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(callerKey(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
