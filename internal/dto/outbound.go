package dto

import (
	"bytes"
	"encoding/json"
)

// TeacherStatus 是 teacherOnline / teacherOffline 的负载。
type TeacherStatus struct {
	TeacherID string `json:"teacherId"`
}

// WhiteboardFrame 是下发给学生的 whiteboardUpdate 负载。
type WhiteboardFrame struct {
	TeacherID      string          `json:"teacherId"`
	WhiteboardData json.RawMessage `json:"whiteboardData"`
}

type outboundEnvelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: event, Data: data})
}

func EncodeTeacherOnline(teacherID string) ([]byte, error) {
	return encode(EventTeacherOnline, TeacherStatus{TeacherID: teacherID})
}

func EncodeTeacherOffline(teacherID string) ([]byte, error) {
	return encode(EventTeacherOffline, TeacherStatus{TeacherID: teacherID})
}

// EncodeWhiteboardUpdate 生成转发帧。
// json.Marshal 会压缩并转义 RawMessage，这里手工拼接以保证 whiteboardData 字节不变。
func EncodeWhiteboardUpdate(teacherID string, data json.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	if !json.Valid(data) {
		return nil, ErrMalformedEnvelope
	}
	id, err := json.Marshal(teacherID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(data) + len(id) + 64)
	buf.WriteString(`{"event":"` + EventWhiteboardUpdate + `","data":{"teacherId":`)
	buf.Write(id)
	buf.WriteString(`,"whiteboardData":`)
	buf.Write(data)
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}
