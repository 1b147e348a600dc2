// Package middleware provides HTTP middleware for the auditscope API server.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/auditscope/internal/metrics"
)

// RateLimit describes a per-client token bucket. PerSecond may be
// fractional: 0.5 admits one request every two seconds once Burst is spent.
type RateLimit struct {
	Name      string
	PerSecond float64
	Burst     int
}

const (
	// maxClients bounds the bucket table; new clients are rejected when full.
	maxClients = 100_000
	// idleTTL is how long an untouched bucket is kept.
	idleTTL       = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

// RateLimiter applies a RateLimit per client IP.
type RateLimiter struct {
	limit   RateLimit
	mu      sync.Mutex
	clients map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a RateLimiter. A background sweep drops idle
// buckets until ctx is cancelled.
func NewRateLimiter(ctx context.Context, limit RateLimit) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		clients: make(map[string]*bucket),
		now:     time.Now,
	}
	go rl.sweep(ctx)

	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, b := range rl.clients {
				if now.Sub(b.seen) > idleTTL {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// take spends one token for ip. When none is available it returns the
// wait until the next token.
func (rl *RateLimiter) take(ip string) (ok bool, wait time.Duration, full bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, found := rl.clients[ip]
	if !found {
		if len(rl.clients) >= maxClients {
			return false, 0, true
		}
		b = &bucket{tokens: float64(rl.limit.Burst), seen: now}
		rl.clients[ip] = b
	}

	b.tokens = math.Min(float64(rl.limit.Burst), b.tokens+now.Sub(b.seen).Seconds()*rl.limit.PerSecond)
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0, false
	}
	if rl.limit.PerSecond <= 0 {
		return false, time.Minute, false
	}
	return false, time.Duration((1 - b.tokens) / rl.limit.PerSecond * float64(time.Second)), false
}

// Handler returns Gin middleware enforcing the limit per client IP.
// ClientIP ignores forwarding headers because the router trusts no proxies.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait, full := rl.take(c.ClientIP())
		switch {
		case full:
			metrics.ErrorsTotal.WithLabelValues("rate_limited").Inc()
			respondError(c, http.StatusTooManyRequests, errCodeRateLimited, "too many clients")
			return
		case !ok:
			metrics.ErrorsTotal.WithLabelValues("rate_limited").Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			respondError(c, http.StatusTooManyRequests, errCodeRateLimited, rl.limit.Name+" rate limit exceeded")
			return
		}

		c.Next()
	}
}
