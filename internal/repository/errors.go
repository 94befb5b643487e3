package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示尝试插入或更新的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrInvalidReference 表示外键引用的记录不存在
	ErrInvalidReference = errors.New("repository: referenced record does not exist")
)

// 特定资源的错误 (基于通用错误)
var (
	ErrUserNotFound        = ErrNotFound
	ErrRecordingNotFound   = ErrNotFound
	ErrLiveSessionNotFound = ErrNotFound
)
