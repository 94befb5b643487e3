package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// 客户端 -> 服务端 事件名
const (
	EventCheckTeacherStatus = "checkTeacherStatus"
	EventStartLive          = "startLive"
	EventStopLive           = "stopLive"
	EventJoinTeacherRoom    = "joinTeacherRoom"
	EventLeaveTeacherRoom   = "leaveTeacherRoom"
	EventWhiteboardUpdate   = "whiteboardUpdate"
)

// 服务端 -> 客户端 事件名 (whiteboardUpdate 双向共用)
const (
	EventTeacherOnline  = "teacherOnline"
	EventTeacherOffline = "teacherOffline"
)

var (
	ErrMalformedEnvelope = errors.New("dto: malformed event envelope")
	ErrUnknownEvent      = errors.New("dto: unknown event")
	ErrMissingTeacherID  = errors.New("dto: missing teacherId")
)

var validate = validator.New()

// Envelope 是一帧 WebSocket 文本消息的外层结构: {"event": "...", "data": ...}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event 是入站事件的封闭集合，只有本包内的类型实现它。
type Event interface {
	Name() string
	isEvent()
}

type CheckTeacherStatus struct{}

type StartLive struct {
	TeacherID string `json:"teacherId" validate:"required,max=64"`
}

type StopLive struct {
	TeacherID string `json:"teacherId" validate:"required,max=64"`
}

type JoinTeacherRoom struct {
	TeacherID string `json:"teacherId" validate:"required,max=64"`
}

type LeaveTeacherRoom struct {
	TeacherID string `json:"teacherId" validate:"required,max=64"`
}

// WhiteboardUpdate 携带教师画板的完整快照，WhiteboardData 原样转发。
type WhiteboardUpdate struct {
	TeacherID      string          `json:"teacherId" validate:"required,max=64"`
	WhiteboardData json.RawMessage `json:"whiteboardData"`
}

func (CheckTeacherStatus) Name() string { return EventCheckTeacherStatus }
func (StartLive) Name() string          { return EventStartLive }
func (StopLive) Name() string           { return EventStopLive }
func (JoinTeacherRoom) Name() string    { return EventJoinTeacherRoom }
func (LeaveTeacherRoom) Name() string   { return EventLeaveTeacherRoom }
func (WhiteboardUpdate) Name() string   { return EventWhiteboardUpdate }

func (CheckTeacherStatus) isEvent() {}
func (StartLive) isEvent()          {}
func (StopLive) isEvent()           {}
func (JoinTeacherRoom) isEvent()    {}
func (LeaveTeacherRoom) isEvent()   {}
func (WhiteboardUpdate) isEvent()   {}

// DecodeEvent 解析并校验一帧入站消息。
// 返回的错误只用于日志，调用方应直接丢弃该帧。
func DecodeEvent(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: event name is empty", ErrMalformedEnvelope)
	}

	var ev Event
	switch env.Event {
	case EventCheckTeacherStatus:
		return CheckTeacherStatus{}, nil
	case EventStartLive, EventStopLive, EventJoinTeacherRoom, EventLeaveTeacherRoom:
		teacherID, err := decodeTeacherID(env.Data)
		if err != nil {
			return nil, err
		}
		switch env.Event {
		case EventStartLive:
			ev = StartLive{TeacherID: teacherID}
		case EventStopLive:
			ev = StopLive{TeacherID: teacherID}
		case EventJoinTeacherRoom:
			ev = JoinTeacherRoom{TeacherID: teacherID}
		default:
			ev = LeaveTeacherRoom{TeacherID: teacherID}
		}
	case EventWhiteboardUpdate:
		var upd WhiteboardUpdate
		if err := json.Unmarshal(env.Data, &upd); err != nil {
			return nil, fmt.Errorf("%w: whiteboardUpdate payload: %v", ErrMalformedEnvelope, err)
		}
		upd.TeacherID = strings.TrimSpace(upd.TeacherID)
		if len(upd.WhiteboardData) == 0 {
			upd.WhiteboardData = json.RawMessage("null")
		}
		ev = upd
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if err := validate.Struct(ev); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
			return nil, fmt.Errorf("%w: %s", ErrMissingTeacherID, env.Event)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return ev, nil
}

// decodeTeacherID 接受三种写法: "T1"、{"teacherId":"T1"} 或数字 42。
func decodeTeacherID(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", ErrMissingTeacherID
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		return strings.TrimSpace(s), nil
	case '{':
		var obj struct {
			TeacherID json.RawMessage `json:"teacherId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		if len(obj.TeacherID) > 0 && obj.TeacherID[0] == '{' {
			return "", fmt.Errorf("%w: nested teacherId object", ErrMalformedEnvelope)
		}
		return decodeTeacherID(obj.TeacherID)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", fmt.Errorf("%w: teacherId must be a string or number", ErrMalformedEnvelope)
		}
		return n.String(), nil
	}
}
