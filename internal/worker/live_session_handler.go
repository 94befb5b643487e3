package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/domain"
	"github.com/yourelearner/digiboard44/internal/repository"
	"github.com/yourelearner/digiboard44/internal/tasks"
)

// LiveTeacherSource 提供进程内权威的在线教师集合
type LiveTeacherSource interface {
	ListLiveTeachers() []string
}

// LiveSessionHandler 维护直播审计记录和 Redis 中的在线教师镜像
type LiveSessionHandler struct {
	sessions repository.LiveSessionRepository
	store    repository.LiveTeacherStore
	presence LiveTeacherSource
	now      func() time.Time
}

// NewLiveSessionHandler 创建 Handler 实例
func NewLiveSessionHandler(sessions repository.LiveSessionRepository, store repository.LiveTeacherStore, presence LiveTeacherSource) *LiveSessionHandler {
	if sessions == nil {
		panic("LiveSessionRepository cannot be nil for LiveSessionHandler")
	}
	if store == nil {
		panic("LiveTeacherStore cannot be nil for LiveSessionHandler")
	}
	if presence == nil {
		panic("LiveTeacherSource cannot be nil for LiveSessionHandler")
	}
	return &LiveSessionHandler{sessions: sessions, store: store, presence: presence, now: time.Now}
}

func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID, _ := asynq.GetTaskID(ctx)
	retryCount, _ := asynq.GetRetryCount(ctx)
	return logrus.WithFields(logrus.Fields{
		"component": "live_session_worker",
		"task_id":   taskID,
		"task_type": t.Type(),
		"retries":   retryCount,
	})
}

// HandleLiveStarted 打开一条审计记录并把教师加入镜像集合
func (h *LiveSessionHandler) HandleLiveStarted(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var p tasks.LiveStartedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.TeacherID == "" {
		logCtx.WithError(err).Error("Invalid live:started payload, skipping retry")
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithField("teacher_id", p.TeacherID)

	// 重试时不会重复打开: 先关闭同一教师遗留的未结束记录
	if _, err := h.sessions.CloseOpen(ctx, p.TeacherID, p.StartedAt, domain.EndReasonReconciled, 0); err != nil {
		logCtx.WithError(err).Error("Failed to close stale live session")
		return err
	}
	if err := h.sessions.Open(ctx, &domain.LiveSession{TeacherID: p.TeacherID, StartedAt: p.StartedAt}); err != nil {
		logCtx.WithError(err).Error("Failed to open live session")
		return err
	}
	if err := h.store.AddLiveTeacher(ctx, p.TeacherID); err != nil {
		logCtx.WithError(err).Error("Failed to mirror live teacher")
		return err
	}
	logCtx.Info("Live session opened")
	return nil
}

// HandleLiveEnded 关闭审计记录并从镜像集合中移除教师
func (h *LiveSessionHandler) HandleLiveEnded(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var p tasks.LiveEndedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.TeacherID == "" {
		logCtx.WithError(err).Error("Invalid live:ended payload, skipping retry")
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"teacher_id": p.TeacherID, "reason": p.Reason})

	closed, err := h.sessions.CloseOpen(ctx, p.TeacherID, p.EndedAt, p.Reason, p.Audience)
	if err != nil {
		logCtx.WithError(err).Error("Failed to close live session")
		return err
	}
	if closed == 0 {
		logCtx.Warn("No open live session to close")
	}
	if err := h.store.RemoveLiveTeacher(ctx, p.TeacherID); err != nil {
		logCtx.WithError(err).Error("Failed to remove live teacher from mirror")
		return err
	}
	logCtx.WithField("audience", p.Audience).Info("Live session closed")
	return nil
}

// HandlePresenceReconcile 用内存在线表覆盖镜像，并关闭已不在线教师的审计记录。
// 覆盖前读出旧镜像，记录漂移的教师 ID。
func (h *LiveSessionHandler) HandlePresenceReconcile(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	cutoff := h.now()
	live := h.presence.ListLiveTeachers()

	// 读旧镜像失败不影响覆盖
	mirrored, err := h.store.ListLiveTeachers(ctx)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to read live teacher mirror, skipping drift check")
	}
	stale, missing := mirrorDrift(mirrored, live)

	if err := h.store.ReplaceLiveTeachers(ctx, live); err != nil {
		logCtx.WithError(err).Error("Failed to replace live teacher mirror")
		return err
	}
	closed, err := h.sessions.CloseAllExcept(ctx, live, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Failed to close stale live sessions")
		return err
	}

	entry := logCtx.WithFields(logrus.Fields{"live_count": len(live), "closed": closed})
	if len(stale) > 0 || len(missing) > 0 {
		entry.WithFields(logrus.Fields{"stale": stale, "missing": missing}).Warn("Live teacher mirror drifted from presence table")
	}
	if closed > 0 {
		entry.Warn("Presence reconcile closed stale live sessions")
	} else {
		entry.Debug("Presence reconcile complete")
	}
	return nil
}

// mirrorDrift 返回镜像中多出的 ID 和缺失的 ID，结果保持输入顺序
func mirrorDrift(mirrored, live []string) (stale, missing []string) {
	liveSet := make(map[string]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}
	}
	mirroredSet := make(map[string]struct{}, len(mirrored))
	for _, id := range mirrored {
		mirroredSet[id] = struct{}{}
		if _, ok := liveSet[id]; !ok {
			stale = append(stale, id)
		}
	}
	for _, id := range live {
		if _, ok := mirroredSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	return stale, missing
}
