package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit returns token-bucket rate limiting middleware. Buckets are keyed
// by the API key set by the auth middleware, or by client IP when the API is
// open. Each bucket refills at rps tokens/sec up to burst; an empty bucket
// answers 429.
//
// Every analysis request can reach a paid provider, so this also caps spend.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		bucket := "ip:" + c.ClientIP()
		if key, ok := c.Get(ContextKeyAPIKey); ok {
			if s, ok := key.(string); ok && s != "" {
				bucket = "key:" + s
			}
		}

		mu.Lock()
		limiter, exists := limiters[bucket]
		if !exists {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[bucket] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
