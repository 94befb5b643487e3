package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/repository"
	"github.com/yourelearner/digiboard44/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 的启动和关闭逻辑
type WorkerServer struct {
	server  *asynq.Server
	log     *logrus.Entry
	handler *LiveSessionHandler
}

// NewWorkerServer 创建一个新的 WorkerServer 实例
func NewWorkerServer(redisOpt asynq.RedisClientOpt, sessions repository.LiveSessionRepository, store repository.LiveTeacherStore, presence LiveTeacherSource, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueCritical: 6,
				tasks.QueueDefault:  3,
				tasks.QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID, _ := asynq.GetTaskID(ctx)
				queue, _ := asynq.GetQueueName(ctx)
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"queue":     queue,
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
			Logger: logEntry,
		},
	)

	return &WorkerServer{
		server:  server,
		log:     logEntry,
		handler: NewLiveSessionHandler(sessions, store, presence),
	}
}

// NewServeMux 注册全部任务处理器
func NewServeMux(h *LiveSessionHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeLiveStarted, h.HandleLiveStarted)
	mux.HandleFunc(tasks.TypeLiveEnded, h.HandleLiveEnded)
	mux.HandleFunc(tasks.TypePresenceReconcile, h.HandlePresenceReconcile)
	return mux
}

// Start 启动 Worker Server 的处理 goroutine，立即返回
func (ws *WorkerServer) Start() {
	ws.log.Info("Worker server starting...")
	if err := ws.server.Start(NewServeMux(ws.handler)); err != nil {
		ws.log.Fatalf("Could not run worker server: %v", err)
	}
}

// Shutdown 优雅地关闭 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
