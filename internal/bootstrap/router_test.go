package bootstrap

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourelearner/digiboard44/internal/domain"
	httpHandler "github.com/yourelearner/digiboard44/internal/handler/http"
	wsHandler "github.com/yourelearner/digiboard44/internal/handler/websocket"
	"github.com/yourelearner/digiboard44/internal/hub"
	redisstate "github.com/yourelearner/digiboard44/internal/infra/state/redis"
	"github.com/yourelearner/digiboard44/internal/repository/mocks"
	"github.com/yourelearner/digiboard44/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Config, *mocks.RecordingRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &Config{
		JWTSecret:         "router-secret",
		JWTExpiryHours:    1,
		RateLimitMax:      100,
		RateLimitWindow:   time.Second,
		CORSAllowedOrigin: "http://localhost:5173",
		WSSendBuffer:      8,
	}
	users := new(mocks.UserRepository)
	recordings := new(mocks.RecordingRepository)
	sessions := new(mocks.LiveSessionRepository)
	presence := hub.NewPresenceTable()
	h := hub.NewHub(hub.NewController(hub.NewRegistry(), presence), 8)

	authService, err := service.NewAuthService(users, cfg.JWTSecret, cfg.JWTExpiryHours)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	router := newRouter(cfg, log, routerDeps{
		auth:       httpHandler.NewAuthHandler(authService),
		recordings: httpHandler.NewRecordingHandler(service.NewRecordingService(recordings)),
		live:       httpHandler.NewLiveHandler(service.NewLiveService(presence, users, sessions)),
		ws:         wsHandler.NewWebSocketHandler(h, cfg.CORSAllowedOrigin, cfg.WSSendBuffer),
		limiter:    redisstate.NewRedisStateRepository(client, "test:"),
	})
	return router, cfg, recordings
}

func bearer(t *testing.T, cfg *Config, userID string, role domain.Role) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func request(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_PingAndCORS(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := request(r, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = request(r, http.MethodOptions, "/api/sessions", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_RoleProtection(t *testing.T) {
	r, cfg, recordings := newTestRouter(t)
	recordings.On("FindByStudent", mock.Anything, "s1").Return([]domain.Recording{}, nil)

	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/sessions/student", "").Code)
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodGet, "/api/sessions/student", bearer(t, cfg, "t1", domain.RoleTeacher)).Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/api/sessions/student", bearer(t, cfg, "s1", domain.RoleStudent)).Code)

	assert.Equal(t, http.StatusForbidden, request(r, http.MethodGet, "/api/live/history", bearer(t, cfg, "s1", domain.RoleStudent)).Code)

	w := request(r, http.MethodGet, "/api/live", bearer(t, cfg, "s1", domain.RoleStudent))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"teachers":[]}`, w.Body.String())
}

func TestRouter_WebSocketRequiresToken(t *testing.T) {
	r, _, _ := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/ws", "").Code)
}

func TestRedactedPath(t *testing.T) {
	u, err := url.Parse("/ws?token=abc.def&x=1")
	require.NoError(t, err)
	assert.Equal(t, "/ws?token=REDACTED&x=1", redactedPath(u))

	u, _ = url.Parse("/ping")
	assert.Equal(t, "/ping", redactedPath(u))
}
