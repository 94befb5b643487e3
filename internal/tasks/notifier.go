package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/domain"
)

const (
	defaultNotifierBuffer = 256
	enqueueTimeout        = 5 * time.Second
)

// Enqueuer 是 asynq.Client 中 Notifier 用到的部分
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier 把直播生命周期事件转换为 asynq 任务。
// 事件先进入缓冲通道，由单个 goroutine 按顺序入队，因此不会阻塞 Hub。
type Notifier struct {
	client Enqueuer
	events chan *asynq.Task
	log    *logrus.Entry

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewNotifier 创建 Notifier，需要调用 Start 后才会入队
func NewNotifier(client Enqueuer, buffer int) *Notifier {
	if client == nil {
		panic("Enqueuer cannot be nil for Notifier")
	}
	if buffer <= 0 {
		buffer = defaultNotifierBuffer
	}
	return &Notifier{
		client: client,
		events: make(chan *asynq.Task, buffer),
		log:    logrus.WithField("component", "live_notifier"),
		done:   make(chan struct{}),
	}
}

// TeacherLive 实现 hub.LifecycleObserver
func (n *Notifier) TeacherLive(teacherID string, startedAt time.Time) {
	task, err := NewLiveStartedTask(teacherID, startedAt)
	if err != nil {
		n.log.WithError(err).WithField("teacher_id", teacherID).Error("Failed to build live:started task")
		return
	}
	n.offer(task, teacherID)
}

// TeacherOffline 实现 hub.LifecycleObserver
func (n *Notifier) TeacherOffline(teacherID string, reason domain.EndReason, audience int, endedAt time.Time) {
	task, err := NewLiveEndedTask(teacherID, reason, audience, endedAt)
	if err != nil {
		n.log.WithError(err).WithField("teacher_id", teacherID).Error("Failed to build live:ended task")
		return
	}
	n.offer(task, teacherID)
}

func (n *Notifier) offer(task *asynq.Task, teacherID string) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stopped {
		return
	}
	select {
	case n.events <- task:
	default:
		n.log.WithFields(logrus.Fields{"teacher_id": teacherID, "task_type": task.Type()}).
			Warn("Notifier buffer full, dropping lifecycle task")
	}
}

// Start 启动入队 goroutine
func (n *Notifier) Start() {
	go n.run()
}

func (n *Notifier) run() {
	defer close(n.done)
	for task := range n.events {
		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		info, err := n.client.EnqueueContext(ctx, task)
		cancel()
		logCtx := n.log.WithField("task_type", task.Type())
		if err != nil {
			logCtx.WithError(err).Error("Failed to enqueue lifecycle task")
			continue
		}
		logCtx.WithField("task_id", info.ID).Debug("Lifecycle task enqueued")
	}
}

// Stop 关闭通道并等待已缓冲的任务入队完成。只能在 Start 之后调用。
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	close(n.events)
	n.mu.Unlock()
	<-n.done
}
