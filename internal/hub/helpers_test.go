package hub_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourelearner/digiboard44/internal/domain"
	"github.com/yourelearner/digiboard44/internal/hub"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (f frame) teacherID(t *testing.T) string {
	t.Helper()
	var body struct {
		TeacherID string `json:"teacherId"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &body))
	return body.TeacherID
}

// fakePeer 记录收到的所有帧
type fakePeer struct {
	id string

	mu     sync.Mutex
	frames []frame
	full   bool
}

func newPeer(id string) *fakePeer { return &fakePeer{id: id} }

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(message []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full {
		return false
	}
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		panic(err)
	}
	p.frames = append(p.frames, f)
	return true
}

func (p *fakePeer) received() []frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]frame(nil), p.frames...)
}

func (p *fakePeer) count(event string) int {
	n := 0
	for _, f := range p.received() {
		if f.Event == event {
			n++
		}
	}
	return n
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	p.frames = nil
	p.mu.Unlock()
}

// recordingObserver 记录生命周期通知
type recordingObserver struct {
	mu      sync.Mutex
	live    []string
	offline []offlineCall
}

type offlineCall struct {
	teacherID string
	reason    domain.EndReason
	audience  int
}

func (o *recordingObserver) TeacherLive(teacherID string, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.live = append(o.live, teacherID)
}

func (o *recordingObserver) TeacherOffline(teacherID string, reason domain.EndReason, audience int, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.offline = append(o.offline, offlineCall{teacherID, reason, audience})
}

type fixture struct {
	ctrl     *hub.Controller
	presence *hub.PresenceTable
	registry *hub.Registry
	observer *recordingObserver
}

func newFixture(opts ...hub.ControllerOption) *fixture {
	reg := hub.NewRegistry()
	pres := hub.NewPresenceTable()
	obs := &recordingObserver{}
	opts = append([]hub.ControllerOption{hub.WithObserver(obs)}, opts...)
	return &fixture{
		ctrl:     hub.NewController(reg, pres, opts...),
		presence: pres,
		registry: reg,
		observer: obs,
	}
}

// connect 以连接 ID 作为用户 ID 登记一条连接
func (f *fixture) connect(t *testing.T, id string) *fakePeer {
	t.Helper()
	p := newPeer(id)
	require.True(t, f.ctrl.Connect(p, id))
	return p
}

func memberIDs(peers []hub.Peer) []string {
	ids := make([]string, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ID())
	}
	return ids
}
