package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/deadcoast/vince/internal/domain"
)

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity   int
	tokens     float64 // Use float for precise refill
	refillRate int     // tokens per second
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(capacity, refillRate int, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Allow reports whether a request arriving at now may proceed
func (tb *TokenBucket) Allow(now time.Time) bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*float64(tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

type limit struct {
	capacity   int
	refillRate int
}

// RateLimiter keeps one bucket per client and endpoint. Endpoints that query
// the operating system get a tighter budget than document reads.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.Mutex
	now     func() time.Time

	defaultLimit   limit
	endpointLimits map[string]limit
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst
func NewRateLimiter(rps, burst int) *RateLimiter {
	osBound := limit{capacity: max(1, burst/2), refillRate: max(1, rps/2)}
	return &RateLimiter{
		buckets:      make(map[string]*TokenBucket),
		now:          time.Now,
		defaultLimit: limit{capacity: burst, refillRate: rps},
		endpointLimits: map[string]limit{
			"/v1/check": osBound,
			"/health":   osBound,
		},
	}
}

func (rl *RateLimiter) getBucket(clientID, endpoint string) *TokenBucket {
	key := clientID + ":" + endpoint

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	l, exists := rl.endpointLimits[endpoint]
	if !exists {
		l = rl.defaultLimit
	}
	bucket := NewTokenBucket(l.capacity, l.refillRate, rl.now())
	rl.buckets[key] = bucket
	return bucket
}

// Middleware returns a Fiber middleware for rate limiting
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := "ip:" + c.IP()
		endpoint := c.Path()

		if !rl.getBucket(clientID, endpoint).Allow(rl.now()) {
			appErr := domain.NewAppError(
				domain.ErrRateLimited,
				"Rate limit exceeded",
				map[string]any{"endpoint": endpoint, "retry_after": "1"},
			).WithOperation(c.Context(), "rate_limit")

			c.Set("Retry-After", "1")
			return c.Status(fiber.StatusTooManyRequests).JSON(map[string]any{
				"status":     "error",
				"code":       appErr.Code,
				"message":    appErr.Message,
				"details":    appErr.Details,
				"request_id": appErr.RequestID,
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.defaultLimit.capacity))
		return c.Next()
	}
}

// CleanupOldBuckets removes buckets idle for longer than idle
func (rl *RateLimiter) CleanupOldBuckets(idle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		unused := now.Sub(bucket.lastRefill)
		bucket.mutex.Unlock()
		if unused > idle {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine starts a background routine to clean up old buckets
// Returns a stop function to cancel the routine
func (rl *RateLimiter) StartCleanupRoutine() (stop func()) {
	ticker := time.NewTicker(10 * time.Minute)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				rl.CleanupOldBuckets(time.Hour)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ActiveBuckets returns the number of tracked client/endpoint pairs
func (rl *RateLimiter) ActiveBuckets() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.buckets)
}
