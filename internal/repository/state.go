package repository

import (
	"context"
	"time"
)

// LiveTeacherStore 是在线教师集合在共享存储中的镜像，供其他进程只读查询。
// 内存中的在线表才是权威，镜像由 worker 异步维护。
type LiveTeacherStore interface {
	AddLiveTeacher(ctx context.Context, teacherID string) error
	RemoveLiveTeacher(ctx context.Context, teacherID string) error
	// ReplaceLiveTeachers 用给定集合原子地替换镜像。
	ReplaceLiveTeachers(ctx context.Context, teacherIDs []string) error
	ListLiveTeachers(ctx context.Context) ([]string, error)
}

// RateLimiter 是固定窗口计数器。
type RateLimiter interface {
	// CheckRateLimit 返回该 key 在当前窗口内是否仍被允许。
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}
