package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl lets clients keep a response for maxAgeSeconds. Responses
// behind a token are marked private.
func CacheControl(maxAgeSeconds int, private bool) gin.HandlerFunc {
	scope := "public"
	if private {
		scope = "private"
	}
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("%s, max-age=%d", scope, maxAgeSeconds))
		c.Next()
	}
}

// NoStore forbids caching, used for attempt state that changes on every save.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
