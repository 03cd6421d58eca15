package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/gin-gonic/gin"
)

// Limiter counts hits for a client key.
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, int, error)
}

// RateLimit rejects clients that exceed the limiter's budget. The counter
// lives in Redis so every instance shares it. When Redis is unavailable the
// request is let through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		ok, remaining, err := limiter.Allow(c.Request.Context(), ip)
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
