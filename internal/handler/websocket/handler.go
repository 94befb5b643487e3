package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/hub"
	"github.com/yourelearner/digiboard44/internal/middleware"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader   websocket.Upgrader
	hub        *hub.Hub
	sendBuffer int
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空或 "*" 时不检查 Origin。
func NewWebSocketHandler(h *hub.Hub, allowedOrigin string, sendBuffer int) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			// 非浏览器客户端不带 Origin
			return origin == "" || origin == allowedOrigin
		},
	}

	return &WebSocketHandler{upgrader: upgrader, hub: h, sendBuffer: sendBuffer}
}

// HandleConnection 处理 WebSocket 连接请求，必须挂在 Auth 中间件之后
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		logrus.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误
		logCtx.WithError(err).Warn("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, userID, h.sendBuffer)
	if err := h.hub.Register(client); err != nil {
		logCtx.WithError(err).Error("WS Handler: Failed to register client")
		client.CloseConn()
		return
	}

	client.Run()
	logCtx.WithField("conn_id", client.ID()).Info("WS Handler: Client connected")
}
