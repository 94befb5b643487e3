// Package domain 定义了应用程序中使用的核心数据结构 (数据库模型与领域类型)。
package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 表示平台中的一个用户 (教师或学生)。
type User struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"` // UUID 字符串
	FirstName   string    `gorm:"type:varchar(100);not null" json:"firstName"`
	LastName    string    `gorm:"type:varchar(100);not null" json:"lastName"`
	Email       string    `gorm:"type:varchar(191);uniqueIndex:idx_users_email;not null" json:"email"`
	Password    string    `gorm:"type:text;not null" json:"-"` // bcrypt 哈希，永不序列化
	BirthDate   time.Time `json:"birthDate"`
	PhoneNumber string    `gorm:"type:varchar(32)" json:"phoneNumber"`
	Role        Role      `gorm:"type:varchar(16);index;not null" json:"role"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate 在插入前补齐主键。
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// FullName 返回 "名 姓" 形式的显示名。
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
