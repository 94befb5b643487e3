package bootstrap

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/domain"
	httpHandler "github.com/yourelearner/digiboard44/internal/handler/http"
	wsHandler "github.com/yourelearner/digiboard44/internal/handler/websocket"
	"github.com/yourelearner/digiboard44/internal/middleware"
	"github.com/yourelearner/digiboard44/internal/repository"
)

// routerDeps 收集路由需要的 handler
type routerDeps struct {
	auth       *httpHandler.AuthHandler
	recordings *httpHandler.RecordingHandler
	live       *httpHandler.LiveHandler
	ws         *wsHandler.WebSocketHandler
	limiter    repository.RateLimiter
}

func newRouter(cfg *Config, log *logrus.Logger, d routerDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.CORSAllowedOrigin))
	router.Use(middleware.RateLimit(d.limiter, cfg.RateLimitMax, cfg.RateLimitWindow))

	auth := middleware.Auth(cfg.JWTSecret)

	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", d.auth.Register)
		authRoutes.POST("/login", d.auth.Login)
	}
	sessionRoutes := api.Group("/sessions", auth, middleware.RequireRole(domain.RoleStudent))
	{
		sessionRoutes.POST("", d.recordings.Create)
		sessionRoutes.GET("/student", d.recordings.ListForStudent)
		sessionRoutes.DELETE("/:id", d.recordings.Delete)
	}
	liveRoutes := api.Group("/live", auth)
	{
		liveRoutes.GET("", d.live.ListLive)
		liveRoutes.GET("/history", middleware.RequireRole(domain.RoleTeacher), d.live.History)
	}

	// 浏览器的 WebSocket 握手通过 ?token= 认证
	router.GET("/ws", auth, d.ws.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

// CORSMiddleware 只允许配置的前端来源
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        redactedPath(c.Request.URL),
		})

		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}

// redactedPath 保留查询串，但隐藏 token 参数
func redactedPath(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
	}
	return u.Path + "?" + q.Encode()
}
