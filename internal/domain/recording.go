package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// BoardData 是画板历史的原始文本，一节课可达数 MB。
type BoardData string

// GormDBDataType MySQL 的 text 只有 64KB，需要 longtext
func (BoardData) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "mysql" {
		return "longtext"
	}
	return "text"
}

// Recording 是学生保存的一节课: 教师、视频地址以及白板历史。
// WhiteboardData 为客户端导出的原始内容，服务端不解析。
type Recording struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TeacherID      string    `gorm:"type:varchar(36);index;not null" json:"teacherId"`
	Teacher        *User     `gorm:"foreignKey:TeacherID;constraint:OnDelete:CASCADE" json:"teacher,omitempty"`
	StudentID      string    `gorm:"type:varchar(36);index;not null" json:"studentId"`
	VideoURL       string    `gorm:"type:text;not null" json:"videoUrl"`
	WhiteboardData BoardData `json:"whiteboardData"`
	EndTime        time.Time `json:"endTime"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (r *Recording) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
