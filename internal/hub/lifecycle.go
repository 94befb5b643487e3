package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/domain"
	"github.com/yourelearner/digiboard44/internal/dto"
)

// Controller 是每条连接的会话状态机:
// Unbound -> TeacherLive | StudentJoined -> Unbound。
// 每个操作在同一把锁内完成完整的 读-改-写，非法或乱序的事件一律降级为无操作。
type Controller struct {
	mu              sync.Mutex
	registry        *Registry
	presence        *PresenceTable
	broadcaster     *Broadcaster
	observer        LifecycleObserver
	enforceIdentity bool
	log             *logrus.Entry
}

type ControllerOption func(*Controller)

// WithObserver 注册直播生命周期观察者。
func WithObserver(o LifecycleObserver) ControllerOption {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithIdentityEnforcement 开启后，startLive / stopLive / whiteboardUpdate
// 要求 teacherId 等于连接认证得到的用户 ID。
func WithIdentityEnforcement(enabled bool) ControllerOption {
	return func(c *Controller) { c.enforceIdentity = enabled }
}

func NewController(registry *Registry, presence *PresenceTable, opts ...ControllerOption) *Controller {
	if registry == nil {
		panic("Registry cannot be nil for Controller")
	}
	if presence == nil {
		panic("PresenceTable cannot be nil for Controller")
	}
	c := &Controller{
		registry:    registry,
		presence:    presence,
		broadcaster: NewBroadcaster(registry, presence),
		observer:    nopObserver{},
		log:         logrus.WithField("component", "lifecycle"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Registry() *Registry      { return c.registry }
func (c *Controller) Presence() *PresenceTable { return c.presence }

// Connect 登记一条新连接。
func (c *Controller) Connect(p Peer, userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.registry.OnConnect(p, userID)
	c.log.WithFields(logrus.Fields{"conn_id": p.ID(), "user_id": userID, "accepted": ok}).Debug("Connection registered")
	return ok
}

// Handle 把一个已校验的入站事件分派到对应操作。
func (c *Controller) Handle(connID string, ev dto.Event) {
	switch e := ev.(type) {
	case dto.CheckTeacherStatus:
		c.CheckTeacherStatus(connID)
	case dto.StartLive:
		c.StartLive(connID, e.TeacherID)
	case dto.StopLive:
		c.StopLive(connID, e.TeacherID)
	case dto.JoinTeacherRoom:
		c.JoinTeacherRoom(connID, e.TeacherID)
	case dto.LeaveTeacherRoom:
		c.LeaveTeacherRoom(connID, e.TeacherID)
	case dto.WhiteboardUpdate:
		c.WhiteboardUpdate(connID, e.TeacherID, e.WhiteboardData)
	default:
		c.log.WithField("conn_id", connID).Warnf("Unhandled event type %T", ev)
	}
}

// StartLive 仅在连接未绑定且教师尚未在线时生效，重复调用是安全的。
func (c *Controller) StartLive(connID, teacherID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	logCtx := c.log.WithFields(logrus.Fields{"conn_id": connID, "teacher_id": teacherID, "event": dto.EventStartLive})

	state, ok := c.registry.Get(connID)
	if !ok {
		logCtx.Debug("Ignoring event from unknown connection")
		return
	}
	if !c.identityAllowed(state, teacherID) {
		logCtx.WithField("user_id", state.UserID).Warn("startLive rejected: teacherId does not match authenticated user")
		return
	}
	if state.Bound() {
		logCtx.WithField("current_teacher_id", state.CurrentTeacherID).Debug("startLive ignored: connection already bound")
		return
	}
	peer, ok := c.registry.Peer(connID)
	if !ok {
		return
	}
	if !c.presence.StartRoom(teacherID, peer) {
		logCtx.Debug("startLive ignored: teacher already live")
		return
	}

	c.registry.Bind(connID, domain.RoleTeacher, teacherID)
	n := c.broadcaster.AnnounceTeacherOnline(teacherID)
	c.observer.TeacherLive(teacherID, time.Now())
	logCtx.WithField("recipient_count", n).Info("Teacher is live")
}

// StopLive 拆除房间: 驱逐成员、删除房间、广播下线。
func (c *Controller) StopLive(connID, teacherID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	logCtx := c.log.WithFields(logrus.Fields{"conn_id": connID, "teacher_id": teacherID, "event": dto.EventStopLive})

	state, ok := c.registry.Get(connID)
	if !ok {
		logCtx.Debug("Ignoring event from unknown connection")
		return
	}
	if !c.identityAllowed(state, teacherID) {
		logCtx.WithField("user_id", state.UserID).Warn("stopLive rejected: teacherId does not match authenticated user")
		return
	}

	if !c.teardown(teacherID, domain.EndReasonStopped, "") {
		logCtx.Debug("stopLive ignored: teacher not live")
	}
	c.registry.Unbind(connID, teacherID)
}

// JoinTeacherRoom 学生加入在线教师的房间，并单播 teacherOnline 作为确认。
func (c *Controller) JoinTeacherRoom(connID, teacherID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	logCtx := c.log.WithFields(logrus.Fields{"conn_id": connID, "teacher_id": teacherID, "event": dto.EventJoinTeacherRoom})

	state, ok := c.registry.Get(connID)
	if !ok {
		logCtx.Debug("Ignoring event from unknown connection")
		return
	}
	if c.isHosting(state) {
		logCtx.Debug("joinTeacherRoom ignored: connection is hosting a live room")
		return
	}
	if !c.presence.IsLive(teacherID) {
		logCtx.Debug("joinTeacherRoom ignored: teacher not live")
		return
	}
	peer, ok := c.registry.Peer(connID)
	if !ok {
		return
	}

	if state.Bound() && state.CurrentTeacherID != teacherID {
		// 同一连接只能在一个房间内
		c.presence.RemoveMember(state.CurrentTeacherID, connID)
		logCtx.WithField("previous_teacher_id", state.CurrentTeacherID).Debug("Left previous room before joining")
	}
	added := c.presence.AddMember(teacherID, peer)
	c.registry.Bind(connID, domain.RoleStudent, teacherID)

	c.broadcaster.SendTeacherOnlineTo(peer, teacherID)
	if board, ok := c.presence.LastBoard(teacherID); ok {
		c.broadcaster.SendWhiteboardTo(peer, teacherID, board)
	}
	logCtx.WithField("rejoin", !added).Info("Student joined teacher room")
}

// LeaveTeacherRoom 无条件移除成员关系，不是成员时为无操作。
func (c *Controller) LeaveTeacherRoom(connID, teacherID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	logCtx := c.log.WithFields(logrus.Fields{"conn_id": connID, "teacher_id": teacherID, "event": dto.EventLeaveTeacherRoom})

	state, ok := c.registry.Get(connID)
	if !ok {
		logCtx.Debug("Ignoring event from unknown connection")
		return
	}
	removed := c.presence.RemoveMember(teacherID, connID)
	if !c.isHosting(state) {
		c.registry.Unbind(connID, teacherID)
	}
	if removed {
		logCtx.Info("Student left teacher room")
	} else {
		logCtx.Debug("leaveTeacherRoom: not a member")
	}
}

// WhiteboardUpdate 按负载中声明的 teacherId 转发，房间不存在时丢弃。
func (c *Controller) WhiteboardUpdate(connID, teacherID string, data json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	logCtx := c.log.WithFields(logrus.Fields{"conn_id": connID, "teacher_id": teacherID, "event": dto.EventWhiteboardUpdate})

	state, ok := c.registry.Get(connID)
	if !ok {
		logCtx.Debug("Ignoring event from unknown connection")
		return
	}
	if !c.identityAllowed(state, teacherID) {
		logCtx.WithField("user_id", state.UserID).Warn("whiteboardUpdate rejected: teacherId does not match authenticated user")
		return
	}
	if hostID, ok := c.presence.Host(teacherID); ok && hostID == connID {
		c.presence.RememberBoard(teacherID, data)
	}
	n := c.broadcaster.RelayWhiteboardUpdate(connID, teacherID, data)
	if n >= 0 {
		logCtx.WithField("recipient_count", n).Debug("Whiteboard update relayed")
	}
}

// CheckTeacherStatus 对每位在线教师单播一条 teacherOnline。
func (c *Controller) CheckTeacherStatus(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	peer, ok := c.registry.Peer(connID)
	if !ok {
		return
	}
	live := c.presence.ListLiveTeachers()
	for _, teacherID := range live {
		c.broadcaster.SendTeacherOnlineTo(peer, teacherID)
	}
	c.log.WithFields(logrus.Fields{"conn_id": connID, "event": dto.EventCheckTeacherStatus, "live_count": len(live)}).
		Debug("Teacher status sent")
}

// Disconnect 是一条连接的最后一个事件: 主讲教师断开等同 stopLive，学生断开只移除成员关系。
// 只有第一次调用返回 true。
func (c *Controller) Disconnect(connID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	logCtx := c.log.WithField("conn_id", connID)

	state, ok := c.registry.Get(connID)
	if !ok {
		return false
	}
	logCtx = logCtx.WithFields(logrus.Fields{"user_id": state.UserID, "role": state.Role.String()})

	switch {
	case c.isHosting(state):
		c.teardown(state.CurrentTeacherID, domain.EndReasonDisconnected, connID)
		logCtx.WithField("teacher_id", state.CurrentTeacherID).Info("Live teacher disconnected, room torn down")
	case state.Bound():
		c.presence.RemoveMember(state.CurrentTeacherID, connID)
		logCtx.WithField("teacher_id", state.CurrentTeacherID).Info("Student disconnected, membership removed")
	}

	c.registry.OnDisconnect(connID)
	return true
}

// teardown 必须在持有 c.mu 时调用。skipConnID 不会收到下线通知。
func (c *Controller) teardown(teacherID string, reason domain.EndReason, skipConnID string) bool {
	hostID, _ := c.presence.Host(teacherID)
	if !c.presence.IsLive(teacherID) {
		return false
	}
	members := c.presence.StopRoom(teacherID)
	for _, m := range members {
		c.registry.Unbind(m.ID(), teacherID)
	}
	if hostID != "" {
		c.registry.Unbind(hostID, teacherID)
	}

	n := c.broadcaster.AnnounceTeacherOffline(teacherID, members, skipConnID)
	c.observer.TeacherOffline(teacherID, reason, len(members), time.Now())
	c.log.WithFields(logrus.Fields{
		"teacher_id":      teacherID,
		"reason":          string(reason),
		"evicted":         len(members),
		"recipient_count": n,
	}).Info("Teacher room torn down")
	return true
}

// isHosting 判断连接是否是其当前房间的主讲。
func (c *Controller) isHosting(state ConnState) bool {
	if state.Role != domain.RoleTeacher || !state.Bound() {
		return false
	}
	hostID, ok := c.presence.Host(state.CurrentTeacherID)
	return ok && hostID == state.ID
}

func (c *Controller) identityAllowed(state ConnState, teacherID string) bool {
	return !c.enforceIdentity || state.UserID == teacherID
}
