package hub

import (
	"time"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// LifecycleObserver 接收直播开始/结束的通知。
// 在控制器的锁内同步调用，实现方不得阻塞。
type LifecycleObserver interface {
	TeacherLive(teacherID string, startedAt time.Time)
	TeacherOffline(teacherID string, reason domain.EndReason, audience int, endedAt time.Time)
}

type nopObserver struct{}

func (nopObserver) TeacherLive(string, time.Time)                          {}
func (nopObserver) TeacherOffline(string, domain.EndReason, int, time.Time) {}
