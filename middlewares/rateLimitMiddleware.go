package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request counter per client ip kept in redis.
type RateLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

func NewRateLimiter(client redis.Cmdable, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "RateLimit:" + c.ClientIP()

		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			// fail open while redis is unavailable
			c.Next()
			return
		}
		if count == 1 {
			rl.client.Expire(ctx, key, rl.window)
		}

		if count > rl.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": fmt.Sprintf("rate limit exceeded, try again in %d seconds", int(rl.window.Seconds())),
			})
			return
		}
		c.Next()
	}
}
