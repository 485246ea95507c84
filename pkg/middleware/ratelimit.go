package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimitConfig configurazione del rate limiting per client
type RateLimitConfig struct {
	// RequestsPerMinute limite per client; 0 disabilita il middleware
	RequestsPerMinute int
	// Burst massimo; se 0 vale RequestsPerMinute
	Burst int
	// KeyFunc identifica il client (default: IP)
	KeyFunc func(c fiber.Ctx) string
	// CleanupInterval frequenza di rimozione dei limiter inattivi
	CleanupInterval time.Duration
}

// clientRateLimiter gestisce un limiter per client
type clientRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	lastSeen map[string]time.Time
}

func newClientRateLimiter(requestsPerMinute, burst int) *clientRateLimiter {
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &clientRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		limit:    rate.Limit(requestsPerMinute) / 60.0, // Converti a rate per secondo
		burst:    burst,
	}
}

func (rl *clientRateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	rl.lastSeen[key] = time.Now()
	return limiter
}

// cleanup rimuove i limiter non usati da più di idle
func (rl *clientRateLimiter) cleanup(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, seen := range rl.lastSeen {
		if time.Since(seen) > idle {
			delete(rl.limiters, key)
			delete(rl.lastSeen, key)
		}
	}
}

// RateLimit limita le richieste per client con un token bucket
func RateLimit(config RateLimitConfig) fiber.Handler {
	if config.RequestsPerMinute <= 0 {
		return func(c fiber.Ctx) error { return c.Next() }
	}

	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c fiber.Ctx) string { return c.IP() }
	}

	rl := newClientRateLimiter(config.RequestsPerMinute, config.Burst)

	interval := config.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			rl.cleanup(interval)
		}
	}()

	return func(c fiber.Ctx) error {
		key := keyFunc(c)
		limiter := rl.getLimiter(key)

		if !limiter.Allow() {
			retryAfter := time.Duration(float64(time.Second) / float64(rl.limit))
			c.Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))

			log.Warn().
				Str("request_id", GetRequestID(c)).
				Str("client", key).
				Str("path", c.Path()).
				Msg("rate limit exceeded")

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"detail":     "rate limit exceeded",
				"request_id": GetRequestID(c),
			})
		}

		return c.Next()
	}
}
