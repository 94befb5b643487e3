package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// ConnState 是每条连接的显式状态记录。
// CurrentTeacherID 为空表示未绑定任何房间 (Unbound)。
type ConnState struct {
	ID               string
	UserID           string
	Role             domain.Role
	CurrentTeacherID string
	ConnectedAt      time.Time
}

// Bound 表示连接当前是否绑定在某个教师房间上 (作为主讲或成员)。
func (s ConnState) Bound() bool { return s.CurrentTeacherID != "" }

type registryEntry struct {
	peer  Peer
	state ConnState
}

// Registry 记录所有在线连接及其状态。
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*registryEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*registryEntry)}
}

// OnConnect 为新连接建立记录，初始角色为 unset。
// 同一 ID 重复注册返回 false。
func (r *Registry) OnConnect(p Peer, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[p.ID()]; exists {
		return false
	}
	r.conns[p.ID()] = &registryEntry{
		peer: p,
		state: ConnState{
			ID:          p.ID(),
			UserID:      userID,
			Role:        domain.RoleUnset,
			ConnectedAt: time.Now(),
		},
	}
	return true
}

// OnDisconnect 丢弃连接记录并返回最后的状态。只有第一次调用返回 true。
func (r *Registry) OnDisconnect(connID string) (ConnState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return ConnState{}, false
	}
	delete(r.conns, connID)
	return entry.state, true
}

func (r *Registry) Get(connID string) (ConnState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[connID]
	if !ok {
		return ConnState{}, false
	}
	return entry.state, true
}

func (r *Registry) Peer(connID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return entry.peer, true
}

// Bind 设置连接的角色与当前房间。
func (r *Registry) Bind(connID string, role domain.Role, teacherID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return false
	}
	entry.state.Role = role
	entry.state.CurrentTeacherID = teacherID
	return true
}

// Unbind 仅当连接当前绑定的正是 teacherID 时清除绑定，角色保持不变。
func (r *Registry) Unbind(connID, teacherID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok || entry.state.CurrentTeacherID != teacherID {
		return false
	}
	entry.state.CurrentTeacherID = ""
	return true
}

// Peers 返回当前所有连接的快照，按 ID 排序。
func (r *Registry) Peers() []Peer {
	r.mu.RLock()
	peers := make([]Peer, 0, len(r.conns))
	for _, entry := range r.conns {
		peers = append(peers, entry.peer)
	}
	r.mu.RUnlock()
	sortPeers(peers)
	return peers
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func sortPeers(peers []Peer) {
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID() < peers[j].ID() })
}
