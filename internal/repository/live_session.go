package repository

import (
	"context"
	"time"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// LiveSessionRepository 保存直播审计记录。
type LiveSessionRepository interface {
	// Open 为教师新建一条未结束的记录。
	Open(ctx context.Context, session *domain.LiveSession) error

	// CloseOpen 结束教师所有未结束的记录，返回受影响的行数。
	CloseOpen(ctx context.Context, teacherID string, endedAt time.Time, reason domain.EndReason, audience int) (int64, error)

	// CloseAllExcept 结束不在 liveTeacherIDs 中的教师的未结束记录。
	CloseAllExcept(ctx context.Context, liveTeacherIDs []string, endedAt time.Time) (int64, error)

	// ListByTeacher 返回最近的 limit 条记录，按开始时间倒序。
	ListByTeacher(ctx context.Context, teacherID string, limit int) ([]domain.LiveSession, error)
}
