package middleware

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cognicore/tagvault/internal/httpapi/response"
)

const (
	// Idle limiters are dropped once the map grows past maxLimiters.
	maxLimiters = 4096
	limiterIdle = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*clientLimiter
	every  rate.Limit
	burst  int
	now    func() time.Time
}

// NewRateLimiter allows perSecond requests per key with the given burst.
// A zero perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limits: make(map[string]*clientLimiter),
		every:  rate.Limit(perSecond),
		burst:  burst,
		now:    time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if cl, ok := rl.limits[key]; ok {
		cl.lastSeen = now
		return cl.limiter
	}

	if len(rl.limits) >= maxLimiters {
		for k, cl := range rl.limits {
			if now.Sub(cl.lastSeen) > limiterIdle {
				delete(rl.limits, k)
			}
		}
	}

	cl := &clientLimiter{limiter: rate.NewLimiter(rl.every, rl.burst), lastSeen: now}
	rl.limits[key] = cl
	return cl.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil || rl.every <= 0 {
		return true
	}
	return rl.getLimiter(key).Allow()
}

// Middleware rejects requests over the per-client budget with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			response.RespondError(c, http.StatusTooManyRequests, response.CodeRateLimited,
				errors.New("too many requests, slow down"))
			return
		}
		c.Next()
	}
}
