package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// 任务类型常量
const (
	TypeLiveStarted       = "live:started"       // 教师开播，打开审计记录
	TypeLiveEnded         = "live:ended"         // 教师下播，关闭审计记录
	TypePresenceReconcile = "presence:reconcile" // 周期性对账
)

// 队列名称，与 worker 的队列权重对应
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// LiveStartedPayload 定义了开播任务的数据结构
type LiveStartedPayload struct {
	TeacherID string    `json:"teacherId"`
	StartedAt time.Time `json:"startedAt"`
}

// LiveEndedPayload 定义了下播任务的数据结构
type LiveEndedPayload struct {
	TeacherID string           `json:"teacherId"`
	Reason    domain.EndReason `json:"reason"`
	Audience  int              `json:"audience"`
	EndedAt   time.Time        `json:"endedAt"`
}

// NewLiveStartedTask 创建开播任务。开播与下播必须按顺序处理，放在同一个 critical 队列。
func NewLiveStartedTask(teacherID string, startedAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(LiveStartedPayload{TeacherID: teacherID, StartedAt: startedAt})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLiveStarted, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(5)), nil
}

// NewLiveEndedTask 创建下播任务
func NewLiveEndedTask(teacherID string, reason domain.EndReason, audience int, endedAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(LiveEndedPayload{
		TeacherID: teacherID,
		Reason:    reason,
		Audience:  audience,
		EndedAt:   endedAt,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLiveEnded, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(5)), nil
}

// NewPresenceReconcileTask 创建对账任务，没有 payload
func NewPresenceReconcileTask() *asynq.Task {
	return asynq.NewTask(TypePresenceReconcile, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
