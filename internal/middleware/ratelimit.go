package middleware

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
)

const (
	rateLimitKeyPrefix = "rate_limit:"
	sweepInterval      = 5 * time.Minute
)

type rateLimitEntry struct {
	count       int
	resetTime   time.Time
	lastRequest time.Time
}

// KeyFunc derives the rate-limit key for a request.
type KeyFunc func(c fiber.Ctx) string

// RateLimiter provides in-memory sliding-window rate limiting per client
// key. Entries are created lazily and swept once their window has expired,
// so memory stays bounded by the set of recently active clients. State is
// process-local: a multi-instance deployment would need a shared store,
// which is out of scope for a single-node service.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	keyFunc     KeyFunc

	mu    sync.Mutex
	store map[string]*rateLimitEntry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its background sweep.
// Call Stop on shutdown.
func NewRateLimiter(maxRequests int, window time.Duration, keyFunc KeyFunc) *RateLimiter {
	if keyFunc == nil {
		keyFunc = ClientKey
	}
	rl := &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		keyFunc:     keyFunc,
		store:       make(map[string]*rateLimitEntry),
		stop:        make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the background sweep.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Result is the admission decision for one request.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter int // seconds, only set when not allowed
}

// Check records a request for the given client key and reports whether it
// is within the window's budget.
func (rl *RateLimiter) Check(clientKey string) Result {
	key := rateLimitKeyPrefix + clientKey
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.store[key]
	if !ok || !entry.resetTime.After(now) {
		entry = &rateLimitEntry{
			resetTime:   now.Add(rl.window),
			lastRequest: now,
		}
		rl.store[key] = entry
	}

	// A stale entry whose last request predates the window also rolls
	// over to a fresh window.
	if entry.lastRequest.Before(now.Add(-rl.window)) {
		entry.count = 0
		entry.resetTime = now.Add(rl.window)
	}

	entry.lastRequest = now
	entry.count++

	res := Result{
		Allowed:   entry.count <= rl.maxRequests,
		Limit:     rl.maxRequests,
		Remaining: max(0, rl.maxRequests-entry.count),
		ResetTime: entry.resetTime,
	}
	if !res.Allowed {
		res.RetryAfter = int(math.Ceil(entry.resetTime.Sub(now).Seconds()))
	}
	return res
}

// Reset clears the entry for a client key. Used by the admin endpoint.
func (rl *RateLimiter) Reset(clientKey string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.store, rateLimitKeyPrefix+clientKey)
}

// StatsEntry is a per-key counter snapshot.
type StatsEntry struct {
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	ResetTime time.Time `json:"reset_time"`
}

// Stats is an operational snapshot of the limiter's store.
type Stats struct {
	TotalKeys int          `json:"total_keys"`
	Entries   []StatsEntry `json:"entries"`
}

// GetStats returns the current store contents for monitoring. The internal
// key prefix is stripped.
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := Stats{
		TotalKeys: len(rl.store),
		Entries:   make([]StatsEntry, 0, len(rl.store)),
	}
	for key, entry := range rl.store {
		stats.Entries = append(stats.Entries, StatsEntry{
			Key:       strings.TrimPrefix(key, rateLimitKeyPrefix),
			Count:     entry.count,
			ResetTime: entry.resetTime,
		})
	}
	return stats
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) sweep() {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.store {
		if !entry.resetTime.After(now) {
			delete(rl.store, key)
		}
	}
}

// ClientKey is the default key derivation: the first hop of the
// forwarded-for chain, then the real-ip and Cloudflare headers, falling
// back to a shared "unknown" bucket.
func ClientKey(c fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := c.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if ip := c.Get("CF-Connecting-Ip"); ip != "" {
		return ip
	}
	return "unknown"
}

// Handler returns a Fiber middleware that enforces the limit. Rate-limit
// headers are attached to allowed requests as well; rejections get a 429
// with Retry-After guidance.
func (rl *RateLimiter) Handler(message string) fiber.Handler {
	if message == "" {
		message = "Too many requests. Please try again later."
	}
	return func(c fiber.Ctx) error {
		result := rl.Check(rl.keyFunc(c))

		c.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", result.ResetTime.UTC().Format(time.RFC3339))

		if !result.Allowed {
			slog.Warn("rate limit exceeded",
				"path", c.Path(), "retry_after", result.RetryAfter)
			c.Set("Retry-After", strconv.Itoa(result.RetryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       message,
				"retry_after": result.RetryAfter,
				"reset_time":  result.ResetTime.UTC().Format(time.RFC3339),
			})
		}
		return c.Next()
	}
}
