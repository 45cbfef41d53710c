package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RunLimiterConfig configures throttling of autopilot run requests.
type RunLimiterConfig struct {
	RunsPerMinute float64
	Burst         int
}

// runLimiterMap stores one limiter per wallet address. A run fans out into
// portfolio, price and order-gateway calls, so callers hammering the run
// endpoint for one wallet get throttled before any upstream traffic happens.
type runLimiterMap struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	config   RunLimiterConfig
}

func newRunLimiterMap(config RunLimiterConfig) *runLimiterMap {
	rl := &runLimiterMap{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}
	go rl.cleanup()
	return rl
}

func (rl *runLimiterMap) getLimiter(wallet string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[wallet]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(rl.config.RunsPerMinute/60), rl.config.Burst)
		rl.limiters[wallet] = limiter
	}
	return limiter
}

// cleanup resets the map when too many wallet limiters accumulate.
func (rl *runLimiterMap) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		if len(rl.limiters) > 1000 {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		rl.mu.Unlock()
	}
}

// RunRateLimiter throttles run requests per wallet path parameter, falling
// back to the client IP when no wallet is present.
func RunRateLimiter(config RunLimiterConfig) gin.HandlerFunc {
	limiterMap := newRunLimiterMap(config)

	return func(c *gin.Context) {
		key := c.Param("wallet")
		if key == "" {
			key = c.ClientIP()
		}

		if !limiterMap.getLimiter(key).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many run requests for this wallet. Please try again later.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
