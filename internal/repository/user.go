package repository

import (
	"context"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByEmail 根据邮箱查找用户，不存在时返回 ErrUserNotFound。
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByID 根据用户 ID 查找用户，不存在时返回 ErrUserNotFound。
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// FindByIDs 批量查找，不存在的 ID 被忽略。
	FindByIDs(ctx context.Context, ids []string) ([]domain.User, error)

	// Save 创建或更新用户。邮箱冲突时返回 ErrDuplicateEntry。
	Save(ctx context.Context, user *domain.User) error
}
