package hub

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// teacherRoom 是一位在线教师的房间。
// host 是执行 startLive 的连接，members 是已加入的学生连接。
// 两者合起来构成白板转发的投递频道。
type teacherRoom struct {
	teacherID string
	host      Peer
	members   map[string]Peer
	startedAt time.Time
	lastBoard json.RawMessage
}

// PresenceTable 是 "哪些教师在线、谁在听" 的唯一权威来源。
// 所有读写都在同一把锁下完成。
type PresenceTable struct {
	mu    sync.RWMutex
	rooms map[string]*teacherRoom
}

func NewPresenceTable() *PresenceTable {
	return &PresenceTable{rooms: make(map[string]*teacherRoom)}
}

func (p *PresenceTable) IsLive(teacherID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rooms[teacherID]
	return ok
}

// ListLiveTeachers 返回在线教师 ID 的排序快照。
func (p *PresenceTable) ListLiveTeachers() []string {
	p.mu.RLock()
	ids := make([]string, 0, len(p.rooms))
	for id := range p.rooms {
		ids = append(ids, id)
	}
	p.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Rooms 返回所有在线房间的快照 (按教师 ID 排序)。
func (p *PresenceTable) Rooms() []domain.LiveRoom {
	p.mu.RLock()
	rooms := make([]domain.LiveRoom, 0, len(p.rooms))
	for _, r := range p.rooms {
		rooms = append(rooms, domain.LiveRoom{
			TeacherID: r.teacherID,
			StartedAt: r.startedAt,
			Audience:  len(r.members),
		})
	}
	p.mu.RUnlock()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].TeacherID < rooms[j].TeacherID })
	return rooms
}

// StartRoom 创建房间。已存在时什么都不做并返回 false，不会重置成员。
func (p *PresenceTable) StartRoom(teacherID string, host Peer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rooms[teacherID]; ok {
		return false
	}
	p.rooms[teacherID] = &teacherRoom{
		teacherID: teacherID,
		host:      host,
		members:   make(map[string]Peer),
		startedAt: time.Now(),
	}
	return true
}

// StopRoom 原子地删除房间并返回删除前的成员 (按 ID 排序)。
// 房间不存在时返回 nil。
func (p *PresenceTable) StopRoom(teacherID string) []Peer {
	p.mu.Lock()
	r, ok := p.rooms[teacherID]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	delete(p.rooms, teacherID)
	p.mu.Unlock()

	members := make([]Peer, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	sortPeers(members)
	return members
}

// Host 返回房间主讲连接的 ID。
func (p *PresenceTable) Host(teacherID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.rooms[teacherID]
	if !ok || r.host == nil {
		return "", false
	}
	return r.host.ID(), true
}

// AddMember 房间不存在或已是成员时返回 false。
func (p *PresenceTable) AddMember(teacherID string, member Peer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rooms[teacherID]
	if !ok {
		return false
	}
	if _, exists := r.members[member.ID()]; exists {
		return false
	}
	r.members[member.ID()] = member
	return true
}

// RemoveMember 房间或成员关系不存在时返回 false。
func (p *PresenceTable) RemoveMember(teacherID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rooms[teacherID]
	if !ok {
		return false
	}
	if _, exists := r.members[connID]; !exists {
		return false
	}
	delete(r.members, connID)
	return true
}

func (p *PresenceTable) IsMember(teacherID, connID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.rooms[teacherID]
	if !ok {
		return false
	}
	_, exists := r.members[connID]
	return exists
}

// Members 返回成员快照 (按 ID 排序)。
func (p *PresenceTable) Members(teacherID string) []Peer {
	p.mu.RLock()
	r, ok := p.rooms[teacherID]
	if !ok {
		p.mu.RUnlock()
		return nil
	}
	members := make([]Peer, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	p.mu.RUnlock()
	sortPeers(members)
	return members
}

// Channel 返回投递频道 (主讲 + 成员) 中除 excludeID 以外的连接。
// 房间不存在时第二个返回值为 false。
func (p *PresenceTable) Channel(teacherID, excludeID string) ([]Peer, bool) {
	p.mu.RLock()
	r, ok := p.rooms[teacherID]
	if !ok {
		p.mu.RUnlock()
		return nil, false
	}
	peers := make([]Peer, 0, len(r.members)+1)
	if r.host != nil && r.host.ID() != excludeID {
		peers = append(peers, r.host)
	}
	for id, m := range r.members {
		if id != excludeID {
			peers = append(peers, m)
		}
	}
	p.mu.RUnlock()
	sortPeers(peers)
	return peers, true
}

// RememberBoard 保存最近一次白板快照，供后加入的学生回放。
func (p *PresenceTable) RememberBoard(teacherID string, data json.RawMessage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rooms[teacherID]
	if !ok {
		return false
	}
	r.lastBoard = append(json.RawMessage(nil), data...)
	return true
}

func (p *PresenceTable) LastBoard(teacherID string) (json.RawMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.rooms[teacherID]
	if !ok || len(r.lastBoard) == 0 {
		return nil, false
	}
	return r.lastBoard, true
}
