package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yourelearner/digiboard44/internal/infra/setup"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	ServerPort string
	AppEnv     string // development / production
	LogLevel   string

	DBDriver   string
	DBDSN      string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	JWTSecret      string
	JWTExpiryHours int

	RateLimitMax    int
	RateLimitWindow time.Duration

	CORSAllowedOrigin string

	HubQueueSize           int
	WSSendBuffer           int
	EnforceTeacherIdentity bool
	ReconcileSchedule      string
}

// LoadConfig 从环境变量加载配置，.env 文件存在时优先加载
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", setup.DriverMySQL)),
		DBDSN:             os.Getenv("DB_DSN"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:         getEnv("REDIS_KEY_PREFIX", "digiboard:"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		CORSAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:5173"),
		ReconcileSchedule: getEnv("PRESENCE_RECONCILE_SCHEDULE", "@every 1m"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTExpiryHours, err = getEnvInt("JWT_EXPIRY_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = getEnvInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getEnvDuration("RATE_LIMIT_WINDOW", time.Second); err != nil {
		return nil, err
	}
	if cfg.HubQueueSize, err = getEnvInt("HUB_QUEUE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.WSSendBuffer, err = getEnvInt("WS_SEND_BUFFER", 256); err != nil {
		return nil, err
	}
	if cfg.EnforceTeacherIdentity, err = getEnvBool("ENFORCE_TEACHER_IDENTITY", false); err != nil {
		return nil, err
	}

	if cfg.DBDSN == "" && cfg.DBDriver == setup.DriverMySQL {
		cfg.DBDSN = setup.MySQLDSN(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}

	// 无效的日志级别回退到 info
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查必填项和取值范围
func (c *Config) Validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	switch c.DBDriver {
	case setup.DriverMySQL, setup.DriverPostgres, setup.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("environment variable DB_DSN must be set for driver %s", c.DBDriver)
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if c.HubQueueSize <= 0 || c.WSSendBuffer <= 0 {
		return fmt.Errorf("HUB_QUEUE_SIZE and WS_SEND_BUFFER must be positive")
	}
	if c.JWTExpiryHours <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive")
	}
	if strings.TrimSpace(c.ReconcileSchedule) == "" {
		return fmt.Errorf("PRESENCE_RECONCILE_SCHEDULE cannot be empty")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}
