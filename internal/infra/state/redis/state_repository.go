package redisstate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// 在线状态变化通过该频道发布，消息格式 "online:<teacherId>" / "offline:<teacherId>"
const presenceChannelSuffix = "presence:events"

// RedisStateRepository 实现 LiveTeacherStore 与 RateLimiter
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "digiboard:"
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---
func (r *RedisStateRepository) liveTeachersKey() string {
	return r.keyPrefix + "live:teachers"
}

func (r *RedisStateRepository) presenceChannel() string {
	return r.keyPrefix + presenceChannelSuffix
}

func (r *RedisStateRepository) rateLimitKey(key string) string {
	return fmt.Sprintf("%sratelimit:%s", r.keyPrefix, key)
}

// PresenceChannel 返回在线状态事件频道名，供订阅方使用
func (r *RedisStateRepository) PresenceChannel() string { return r.presenceChannel() }

// AddLiveTeacher 加入在线集合并发布 online 事件
func (r *RedisStateRepository) AddLiveTeacher(ctx context.Context, teacherID string) error {
	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.liveTeachersKey(), teacherID)
	pipe.Publish(ctx, r.presenceChannel(), "online:"+teacherID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to add live teacher %s: %w", teacherID, err)
	}
	return nil
}

// RemoveLiveTeacher 移出在线集合并发布 offline 事件
func (r *RedisStateRepository) RemoveLiveTeacher(ctx context.Context, teacherID string) error {
	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, r.liveTeachersKey(), teacherID)
	pipe.Publish(ctx, r.presenceChannel(), "offline:"+teacherID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to remove live teacher %s: %w", teacherID, err)
	}
	return nil
}

// ReplaceLiveTeachers 在一个事务中清空并重建在线集合
func (r *RedisStateRepository) ReplaceLiveTeachers(ctx context.Context, teacherIDs []string) error {
	key := r.liveTeachersKey()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(teacherIDs) > 0 {
		members := make([]interface{}, len(teacherIDs))
		for i, id := range teacherIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to replace live teachers (%d ids): %w", len(teacherIDs), err)
	}
	logrus.WithField("live_count", len(teacherIDs)).Debug("redis: live teacher mirror replaced")
	return nil
}

// ListLiveTeachers 返回排序后的在线教师 ID
func (r *RedisStateRepository) ListLiveTeachers(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.liveTeachersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list live teachers: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// CheckRateLimit 固定窗口计数: 递增计数并读取 TTL，key 没有过期时间时补设窗口。
// 补设失败的 key 会在下一次请求时再次补设。返回 true 表示仍在限额内。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	fullKey := r.rateLimitKey(key)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	ttl := pipe.TTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: incr failed for rate limit on key %s: %w", fullKey, err)
	}
	// TTL 为 -1 表示 key 存在但没有过期时间
	if ttl.Val() < 0 {
		if err := r.client.Expire(ctx, fullKey, window).Err(); err != nil {
			return false, fmt.Errorf("redis: expire failed for rate limit on key %s: %w", fullKey, err)
		}
	}
	return incr.Val() <= limit, nil
}
