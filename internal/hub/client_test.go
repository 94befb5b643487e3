package hub_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourelearner/digiboard44/internal/dto"
	"github.com/yourelearner/digiboard44/internal/hub"
)

func startHubServer(t *testing.T) (*hub.Hub, *httptest.Server) {
	t.Helper()
	ctrl := hub.NewController(hub.NewRegistry(), hub.NewPresenceTable())
	h := hub.NewHub(ctrl, 64)
	go h.Run()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := hub.NewClient(h, conn, r.URL.Query().Get("user"), 16)
		if err := h.Register(client); err != nil {
			conn.Close()
			return
		}
		client.Run()
	}))
	t.Cleanup(func() {
		h.Stop()
		srv.Close()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestClient_EndToEndLiveSession(t *testing.T) {
	h, srv := startHubServer(t)

	teacher := dial(t, srv, "T1")
	emit(t, teacher, `{"event":"startLive","data":"T1"}`)
	online := readFrame(t, teacher)
	assert.Equal(t, dto.EventTeacherOnline, online.Event, "教师自己也会收到全局上线广播")

	student := dial(t, srv, "S1")
	emit(t, student, `{"event":"joinTeacherRoom","data":{"teacherId":"T1"}}`)
	confirm := readFrame(t, student)
	assert.Equal(t, dto.EventTeacherOnline, confirm.Event)
	assert.Equal(t, "T1", confirm.teacherID(t))

	emit(t, teacher, `{"event":"whiteboardUpdate","data":{"teacherId":"T1","whiteboardData":"[{\"p\":1}]"}}`)
	update := readFrame(t, student)
	assert.Equal(t, dto.EventWhiteboardUpdate, update.Event)
	assert.JSONEq(t, `{"teacherId":"T1","whiteboardData":"[{\"p\":1}]"}`, string(update.Data))

	require.NoError(t, teacher.Close())
	offline := readFrame(t, student)
	assert.Equal(t, dto.EventTeacherOffline, offline.Event)

	assert.Eventually(t, func() bool {
		return !h.Controller().Presence().IsLive("T1") && h.Controller().Registry().Count() == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestClient_MalformedFramesAreDropped(t *testing.T) {
	h, srv := startHubServer(t)

	teacher := dial(t, srv, "T1")
	emit(t, teacher, `{"event":"startLive","data":"T1"}`)
	readFrame(t, teacher)

	student := dial(t, srv, "S1")
	emit(t, student, `not json at all`)
	emit(t, student, `{"event":"explode"}`)
	emit(t, student, `{"event":"checkTeacherStatus"}`)

	status := readFrame(t, student)
	assert.Equal(t, dto.EventTeacherOnline, status.Event)
	assert.Equal(t, "T1", status.teacherID(t))
	assert.Equal(t, 2, h.Controller().Registry().Count(), "畸形帧不应断开连接")
}

func TestHub_StopClosesClients(t *testing.T) {
	h, srv := startHubServer(t)
	conn := dial(t, srv, "U1")

	assert.Eventually(t, func() bool { return h.Controller().Registry().Count() == 1 }, 3*time.Second, 20*time.Millisecond)
	h.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
