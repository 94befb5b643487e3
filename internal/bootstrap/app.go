package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/yourelearner/digiboard44/internal/handler/http"
	wsHandler "github.com/yourelearner/digiboard44/internal/handler/websocket"
	"github.com/yourelearner/digiboard44/internal/hub"
	gormpersistence "github.com/yourelearner/digiboard44/internal/infra/persistence/gorm"
	"github.com/yourelearner/digiboard44/internal/infra/setup"
	redisstate "github.com/yourelearner/digiboard44/internal/infra/state/redis"
	"github.com/yourelearner/digiboard44/internal/service"
	"github.com/yourelearner/digiboard44/internal/tasks"
	"github.com/yourelearner/digiboard44/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Scheduler   *asynq.Scheduler
	Notifier    *tasks.Notifier
	Hub         *hub.Hub
	HttpServer  *http.Server
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		// logrus 还未配置，直接写 stderr
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger，各组件通过 logrus 包级函数使用同一个实例
	log := logrus.StandardLogger()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // LoadConfig 已校验
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DBDriver, cfg.DBDSN, logLevel >= logrus.DebugLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Infrastructure initialized successfully")

	// 4. 初始化 Repositories
	userRepo := gormpersistence.NewGormUserRepository(db)
	recordingRepo := gormpersistence.NewGormRecordingRepository(db)
	liveSessionRepo := gormpersistence.NewGormLiveSessionRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
	log.Info("Repositories initialized")

	// 5. 初始化 Hub，生命周期事件经 Notifier 异步写入任务队列
	notifier := tasks.NewNotifier(asynqClient, cfg.HubQueueSize)
	presence := hub.NewPresenceTable()
	controller := hub.NewController(hub.NewRegistry(), presence,
		hub.WithObserver(notifier),
		hub.WithIdentityEnforcement(cfg.EnforceTeacherIdentity),
	)
	hubInstance := hub.NewHub(controller, cfg.HubQueueSize)
	log.Info("Hub initialized")

	// 6. 初始化 Services
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	recordingService := service.NewRecordingService(recordingRepo)
	liveService := service.NewLiveService(presence, userRepo, liveSessionRepo)
	log.Info("Services initialized")

	// 7. 初始化 Worker Server 与 Scheduler
	workerServer := worker.NewWorkerServer(redisClientOpt, liveSessionRepo, stateRepo, presence, log)
	scheduler := asynq.NewScheduler(redisClientOpt, &asynq.SchedulerOpts{
		Logger:   log.WithField("component", "scheduler"),
		Location: time.UTC,
	})
	entryID, err := scheduler.Register(cfg.ReconcileSchedule, tasks.NewPresenceReconcileTask())
	if err != nil {
		return nil, fmt.Errorf("failed to register presence reconcile task: %w", err)
	}
	log.Infof("Presence reconcile task registered with schedule '%s' (EntryID: %s)", cfg.ReconcileSchedule, entryID)

	// 8. 初始化 Gin Engine 和路由
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := newRouter(cfg, log, routerDeps{
		auth:       httpHandler.NewAuthHandler(authService),
		recordings: httpHandler.NewRecordingHandler(recordingService),
		live:       httpHandler.NewLiveHandler(liveService),
		ws:         wsHandler.NewWebSocketHandler(hubInstance, cfg.CORSAllowedOrigin, cfg.WSSendBuffer),
		limiter:    stateRepo,
	})
	log.Info("Router setup complete")

	// 9. 组装 App 对象
	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		AsynqServer: workerServer,
		Scheduler:   scheduler,
		Notifier:    notifier,
		Hub:         hubInstance,
		HttpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run()
	a.Notifier.Start()
	a.AsynqServer.Start()

	if err := a.Scheduler.Start(); err != nil {
		a.Log.Errorf("Asynq scheduler failed to start: %v", err)
	} else {
		a.Log.Info("Asynq scheduler started")
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 按启动的相反顺序关闭组件
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止接收新的 HTTP 请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 关闭 Hub 与所有 WebSocket 连接，再把剩余的生命周期任务入队
	a.Hub.Stop()
	a.Notifier.Stop()

	// 3. 停止 Scheduler 与 Worker
	a.Scheduler.Shutdown()
	a.AsynqServer.Shutdown()

	// 4. 关闭客户端连接
	if err := a.AsynqClient.Close(); err != nil {
		a.Log.Errorf("Error closing Asynq client: %v", err)
	}
	if err := a.RedisClient.Close(); err != nil {
		a.Log.Errorf("Error closing Redis connection: %v", err)
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}
