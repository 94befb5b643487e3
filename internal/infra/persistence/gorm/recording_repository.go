package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourelearner/digiboard44/internal/domain"
	"github.com/yourelearner/digiboard44/internal/repository"
)

// GormRecordingRepository 是 RecordingRepository 接口的 GORM 实现
type GormRecordingRepository struct {
	db *gorm.DB
}

func NewGormRecordingRepository(db *gorm.DB) *GormRecordingRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRecordingRepository")
	}
	return &GormRecordingRepository{db: db}
}

func (r *GormRecordingRepository) Save(ctx context.Context, rec *domain.Recording) error {
	// 不级联写入 Teacher 关联
	err := r.db.WithContext(ctx).Omit("Teacher").Create(rec).Error
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("gorm: save recording: teacher %s: %w", rec.TeacherID, repository.ErrInvalidReference)
		}
		return fmt.Errorf("gorm: save recording for student %s: %w", rec.StudentID, err)
	}
	return nil
}

// FindByStudent 只预加载教师的姓名字段
func (r *GormRecordingRepository) FindByStudent(ctx context.Context, studentID string) ([]domain.Recording, error) {
	var recs []domain.Recording
	err := r.db.WithContext(ctx).
		Preload("Teacher", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "first_name", "last_name")
		}).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find recordings for student %s: %w", studentID, err)
	}
	return recs, nil
}

func (r *GormRecordingRepository) DeleteOwned(ctx context.Context, id, studentID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND student_id = ?", id, studentID).
		Delete(&domain.Recording{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete recording %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRecordingNotFound
	}
	return nil
}
