package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rl-arena/stake-pong-backend/pkg/logger"
	"github.com/rl-arena/stake-pong-backend/pkg/ratelimit"
)

// RateLimitConfig holds rate limit configuration
type RateLimitConfig struct {
	Limiter ratelimit.Limiter
	KeyFunc func(*gin.Context) string // Function to extract rate limit key
	Timeout time.Duration             // 저장소 응답 대기 한도
}

// IPKeyFunc uses only IP address (no accounts in this service)
func IPKeyFunc(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = IPKeyFunc
	}
	if config.Timeout <= 0 {
		config.Timeout = 500 * time.Millisecond
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		allowed, err := config.Limiter.Allow(ctx, key)
		cancel()

		if err != nil {
			// 저장소 오류 시 로깅하고 요청 허용 (Fail-open)
			logger.Warn("Rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
