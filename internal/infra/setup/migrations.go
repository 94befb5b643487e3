package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yourelearner/digiboard44/internal/domain"
)

// MigrateDB 自动迁移所有表结构。
// User 的唯一索引列已限制为 varchar(191)，MySQL utf8mb4 下无需再手写建表 SQL。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	// users 必须先于 recordings 创建 (外键)
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	if err := db.AutoMigrate(&domain.Recording{}, &domain.LiveSession{}); err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
