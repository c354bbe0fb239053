// Package middleware contains Gin middleware functions.
// Middleware runs around a route handler: it calls c.Next() to proceed or
// c.Abort() to stop the chain.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyAPIKey is where the authenticated key is stored on the gin.Context.
const ContextKeyAPIKey = "api_key"

// APIKeyAuth returns middleware that validates API keys sent via the
// X-API-Key header, an "Authorization: Bearer" header or the api_key query
// param. With no keys configured the API is open and the middleware passes
// every request through.
func APIKeyAuth(validKeys []string) gin.HandlerFunc {
	return keyAuth(validKeys, "API key", http.StatusUnauthorized)
}

// AdminKeyAuth is APIKeyAuth for admin endpoints. A key that is present but
// not an admin key gets 403 instead of 401.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	return keyAuth(adminKeys, "admin API key", http.StatusForbidden)
}

func keyAuth(keys []string, what string, invalidStatus int) gin.HandlerFunc {
	// map[string]struct{} is Go's set; struct{} takes zero bytes.
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			keySet[k] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if len(keySet) == 0 {
			c.Next()
			return
		}

		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + what,
			})
			return
		}
		if _, ok := keySet[key]; !ok {
			c.AbortWithStatusJSON(invalidStatus, gin.H{
				"error": "invalid " + what,
			})
			return
		}

		// Downstream middleware (rate limiting) buckets by key.
		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

func requestKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.Query("api_key")
}
