package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/safepreview/internal/logging"
)

const (
	bucketCleanupInterval = 5 * time.Minute
	bucketExpiry          = 10 * time.Minute
)

// RateLimiter implements token bucket rate limiting keyed by client address.
type RateLimiter struct {
	buckets     map[string]*TokenBucket
	bucketMutex sync.Mutex
	config      RateLimitConfig
	logger      logging.Logger
	now         func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// TokenBucket holds the tokens for one key.
type TokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastAccess time.Time
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// NewRateLimiter creates a limiter and starts its bucket cleanup loop.
func NewRateLimiter(config *RateLimitConfig, logger logging.Logger) *RateLimiter {
	if config == nil {
		config = DefaultSecurityConfig().RateLimiting
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  *config,
		logger:  logger.WithComponent("rate_limiter"),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go rl.cleanupExpiredBuckets()

	return rl
}

// Check consumes a token for key.
func (rl *RateLimiter) Check(key string) RateLimitResult {
	if !rl.config.Enabled || rl.config.RequestsPerMinute <= 0 {
		return RateLimitResult{Allowed: true, Remaining: rl.config.BurstSize}
	}

	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	now := rl.now()
	bucket, ok := rl.buckets[key]
	if !ok {
		capacity := float64(rl.config.BurstSize)
		if capacity < 1 {
			capacity = 1
		}
		bucket = &TokenBucket{
			tokens:     capacity,
			capacity:   capacity,
			refillRate: float64(rl.config.RequestsPerMinute) / 60,
			lastRefill: now,
		}
		rl.buckets[key] = bucket
	}
	bucket.lastAccess = now

	return bucket.consume(now)
}

func (tb *TokenBucket) consume(now time.Time) RateLimitResult {
	tb.refill(now)

	if tb.tokens >= 1 {
		tb.tokens--
		return RateLimitResult{Allowed: true, Remaining: int(tb.tokens)}
	}

	missing := 1 - tb.tokens
	retry := time.Duration(missing / tb.refillRate * float64(time.Second))

	return RateLimitResult{Allowed: false, RetryAfter: retry}
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

func (rl *RateLimiter) cleanupExpiredBuckets() {
	ticker := time.NewTicker(bucketCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.performCleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) performCleanup() {
	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	now := rl.now()
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.lastAccess) > bucketExpiry {
			delete(rl.buckets, key)
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// ActiveBuckets returns the number of tracked keys.
func (rl *RateLimiter) ActiveBuckets() int {
	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	return len(rl.buckets)
}

// RateLimitMiddleware rejects requests over the limit with 429.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			result := limiter.Check(ip)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				secs := int(result.RetryAfter.Seconds() + 0.999)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				limiter.logger.Warn(r.Context(), nil, "rate limit exceeded",
					"client_ip", ip,
					"path", r.URL.Path,
					"method", r.Method)
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
