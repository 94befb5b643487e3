package gormpersistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// GormLiveSessionRepository 是 LiveSessionRepository 接口的 GORM 实现
type GormLiveSessionRepository struct {
	db *gorm.DB
}

func NewGormLiveSessionRepository(db *gorm.DB) *GormLiveSessionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormLiveSessionRepository")
	}
	return &GormLiveSessionRepository{db: db}
}

func (r *GormLiveSessionRepository) Open(ctx context.Context, session *domain.LiveSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("gorm: open live session for teacher %s: %w", session.TeacherID, err)
	}
	return nil
}

func (r *GormLiveSessionRepository) CloseOpen(ctx context.Context, teacherID string, endedAt time.Time, reason domain.EndReason, audience int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.LiveSession{}).
		Where("teacher_id = ? AND ended_at IS NULL", teacherID).
		Updates(map[string]interface{}{
			"ended_at":   endedAt,
			"end_reason": string(reason),
			"audience":   audience,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: close live sessions for teacher %s: %w", teacherID, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormLiveSessionRepository) CloseAllExcept(ctx context.Context, liveTeacherIDs []string, endedAt time.Time) (int64, error) {
	// 快照之后才开播的记录不在对账范围内
	query := r.db.WithContext(ctx).Model(&domain.LiveSession{}).Where("ended_at IS NULL AND started_at <= ?", endedAt)
	// 空切片会被渲染成 NOT IN (NULL)，匹配不到任何行
	if len(liveTeacherIDs) > 0 {
		query = query.Where("teacher_id NOT IN ?", liveTeacherIDs)
	}
	result := query.Updates(map[string]interface{}{
		"ended_at":   endedAt,
		"end_reason": string(domain.EndReasonReconciled),
	})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: reconcile open live sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormLiveSessionRepository) ListByTeacher(ctx context.Context, teacherID string, limit int) ([]domain.LiveSession, error) {
	if limit <= 0 {
		limit = 20
	}
	var sessions []domain.LiveSession
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list live sessions for teacher %s: %w", teacherID, err)
	}
	return sessions, nil
}
