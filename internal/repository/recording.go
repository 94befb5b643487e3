package repository

import (
	"context"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// RecordingRepository 管理学生保存的课程记录。
type RecordingRepository interface {
	Save(ctx context.Context, rec *domain.Recording) error

	// FindByStudent 按创建时间倒序返回学生的全部记录，并预加载教师信息。
	FindByStudent(ctx context.Context, studentID string) ([]domain.Recording, error)

	// DeleteOwned 删除属于 studentID 的记录，不存在或不属于该学生时返回 ErrRecordingNotFound。
	DeleteOwned(ctx context.Context, id, studentID string) error
}
