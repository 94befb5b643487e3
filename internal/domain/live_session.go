package domain

import "time"

// EndReason 描述一次直播结束的原因。
type EndReason string

const (
	EndReasonStopped      EndReason = "stopped"      // 教师主动 stopLive
	EndReasonDisconnected EndReason = "disconnected" // 教师连接断开
	EndReasonReconciled   EndReason = "reconciled"   // 周期对账时发现已不在线 (例如进程重启)
)

// LiveSession 是一次直播的审计记录。内存中的在线表才是权威状态，
// 这里只用于历史查询。
type LiveSession struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	TeacherID string     `gorm:"type:varchar(36);index;not null" json:"teacherId"`
	StartedAt time.Time  `gorm:"not null" json:"startedAt"`
	EndedAt   *time.Time `gorm:"index" json:"endedAt,omitempty"`
	EndReason EndReason  `gorm:"type:varchar(16)" json:"endReason,omitempty"`
	Audience  int        `json:"audience"` // 结束时房间内的学生数
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

// LiveRoom 是在线房间的只读快照。
type LiveRoom struct {
	TeacherID string    `json:"teacherId"`
	StartedAt time.Time `json:"startedAt"`
	Audience  int       `json:"audience"`
}
