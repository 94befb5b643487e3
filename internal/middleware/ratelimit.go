package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/repository"
)

// RateLimit 返回一个 Gin 中间件，按客户端 IP 做固定窗口限流。
// 限流存储故障时放行请求，只记录错误。
func RateLimit(limiter repository.RateLimiter, maxRequests int, window time.Duration) gin.HandlerFunc {
	if limiter == nil {
		panic("RateLimiter cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		allowed, err := limiter.CheckRateLimit(c.Request.Context(), c.ClientIP(), int64(maxRequests), window)
		if err != nil {
			logrus.WithError(err).WithField("client_ip", c.ClientIP()).Error("RateLimit: limiter failed, allowing request")
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
