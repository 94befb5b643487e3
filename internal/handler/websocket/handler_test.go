package websocket_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wshandler "github.com/yourelearner/digiboard44/internal/handler/websocket"
	"github.com/yourelearner/digiboard44/internal/hub"
	"github.com/yourelearner/digiboard44/internal/middleware"
)

const secret = "ws-secret"

func startServer(t *testing.T, allowedOrigin string) (*hub.Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := hub.NewHub(hub.NewController(hub.NewRegistry(), hub.NewPresenceTable()), 16)
	go h.Run()

	r := gin.New()
	r.GET("/ws", middleware.Auth(secret), wshandler.NewWebSocketHandler(h, allowedOrigin, 8).HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		h.Stop()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func token(t *testing.T, userID string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    "teacher",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestHandleConnection_RegistersAuthenticatedClient(t *testing.T) {
	h, url := startServer(t, "")

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token(t, "t1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return h.Controller().Registry().Count() == 1 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"startLive","data":"t1"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"teacherOnline","data":{"teacherId":"t1"}}`, string(msg))
}

func TestHandleConnection_RejectsMissingToken(t *testing.T) {
	_, url := startServer(t, "")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleConnection_ChecksOrigin(t *testing.T) {
	h, url := startServer(t, "http://localhost:5173")

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token(t, "t1"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:5173")
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token(t, "t1"), header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return h.Controller().Registry().Count() == 1 }, 3*time.Second, 20*time.Millisecond)
}
