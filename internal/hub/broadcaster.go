package hub

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/dto"
)

// Broadcaster 负责把状态变化和白板快照扇出到连接。
// 扇出是对成员快照的同步循环，每次 Send 都是非阻塞的，不重试也不确认。
type Broadcaster struct {
	registry *Registry
	presence *PresenceTable
	log      *logrus.Entry
}

func NewBroadcaster(registry *Registry, presence *PresenceTable) *Broadcaster {
	if registry == nil || presence == nil {
		panic("registry and presence table cannot be nil for Broadcaster")
	}
	return &Broadcaster{
		registry: registry,
		presence: presence,
		log:      logrus.WithField("component", "broadcaster"),
	}
}

// AnnounceTeacherOnline 向所有在线连接广播 teacherOnline。
func (b *Broadcaster) AnnounceTeacherOnline(teacherID string) int {
	msg, err := dto.EncodeTeacherOnline(teacherID)
	if err != nil {
		b.log.WithError(err).WithField("teacher_id", teacherID).Error("Failed to encode teacherOnline")
		return 0
	}
	return b.deliver(b.registry.Peers(), msg, "", teacherID, dto.EventTeacherOnline)
}

// AnnounceTeacherOffline 先通知拆除时房间内的成员，再通知其余所有连接。
// 每条连接在一次拆除中恰好收到一条 teacherOffline。excludeID 用于跳过正在断开的连接。
func (b *Broadcaster) AnnounceTeacherOffline(teacherID string, members []Peer, excludeID string) int {
	msg, err := dto.EncodeTeacherOffline(teacherID)
	if err != nil {
		b.log.WithError(err).WithField("teacher_id", teacherID).Error("Failed to encode teacherOffline")
		return 0
	}

	notified := make(map[string]struct{}, len(members))
	ordered := make([]Peer, 0, len(members)+b.registry.Count())
	for _, m := range members {
		if _, dup := notified[m.ID()]; dup {
			continue
		}
		notified[m.ID()] = struct{}{}
		ordered = append(ordered, m)
	}
	for _, p := range b.registry.Peers() {
		if _, dup := notified[p.ID()]; dup {
			continue
		}
		notified[p.ID()] = struct{}{}
		ordered = append(ordered, p)
	}
	return b.deliver(ordered, msg, excludeID, teacherID, dto.EventTeacherOffline)
}

// RelayWhiteboardUpdate 把快照转发给房间投递频道内除发送者外的所有连接。
// 房间不存在时静默丢弃并返回 -1。
func (b *Broadcaster) RelayWhiteboardUpdate(senderID, teacherID string, data json.RawMessage) int {
	recipients, ok := b.presence.Channel(teacherID, senderID)
	if !ok {
		b.log.WithFields(logrus.Fields{"teacher_id": teacherID, "conn_id": senderID}).
			Debug("Dropping whiteboardUpdate for a room that is not live")
		return -1
	}
	if len(recipients) == 0 {
		return 0
	}
	msg, err := dto.EncodeWhiteboardUpdate(teacherID, data)
	if err != nil {
		b.log.WithError(err).WithField("teacher_id", teacherID).Warn("Failed to encode whiteboardUpdate, dropping")
		return 0
	}
	return b.deliver(recipients, msg, senderID, teacherID, dto.EventWhiteboardUpdate)
}

// SendTeacherOnlineTo 单播 teacherOnline。
func (b *Broadcaster) SendTeacherOnlineTo(p Peer, teacherID string) bool {
	msg, err := dto.EncodeTeacherOnline(teacherID)
	if err != nil {
		b.log.WithError(err).WithField("teacher_id", teacherID).Error("Failed to encode teacherOnline")
		return false
	}
	return b.deliver([]Peer{p}, msg, "", teacherID, dto.EventTeacherOnline) == 1
}

// SendWhiteboardTo 单播一帧白板快照 (用于后加入学生的回放)。
func (b *Broadcaster) SendWhiteboardTo(p Peer, teacherID string, data json.RawMessage) bool {
	msg, err := dto.EncodeWhiteboardUpdate(teacherID, data)
	if err != nil {
		b.log.WithError(err).WithField("teacher_id", teacherID).Warn("Failed to encode whiteboard replay")
		return false
	}
	return b.deliver([]Peer{p}, msg, "", teacherID, dto.EventWhiteboardUpdate) == 1
}

func (b *Broadcaster) deliver(recipients []Peer, msg []byte, excludeID, teacherID, event string) int {
	sent := 0
	for _, p := range recipients {
		if p == nil || p.ID() == excludeID {
			continue
		}
		if p.Send(msg) {
			sent++
			continue
		}
		b.log.WithFields(logrus.Fields{
			"conn_id":    p.ID(),
			"teacher_id": teacherID,
			"event":      event,
		}).Warn("Client send buffer full or closed, message dropped")
	}
	b.log.WithFields(logrus.Fields{
		"teacher_id":      teacherID,
		"event":           event,
		"recipient_count": sent,
	}).Debug("Fan-out complete")
	return sent
}
