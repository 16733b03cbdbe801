package config

import (
	"log"
	"os"
	"time"

	"HibiscusGuard/pkg/cache"
	"HibiscusGuard/pkg/logger"
	"HibiscusGuard/pkg/util"
)

// config/config.go
type Config struct {
	Addr       string `env:"ADDR"`         // 本地观测服务监听地址
	Mode       string `env:"MODE"`         // gin 运行模式
	WSEndpoint string `env:"WS_ENDPOINT"`  // 推送通道地址 wss://host/ws/alerts
	APIBaseURL string `env:"API_BASE_URL"` // REST 协作方基础地址
	SessionDSN string `env:"SESSION_DSN"`  // 会话存储 sqlite 路径

	Log   logger.LogConfig
	Cache cache.Config

	// 重连退避
	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY"`
	ReconnectMaxAttempts int           `env:"RECONNECT_MAX_ATTEMPTS"`

	// 定位
	LocationProvider string  `env:"LOCATION_PROVIDER"` // static/geoip
	GeoIPDatabase    string  `env:"GEOIP_DATABASE"`
	GeoIPAddress     string  `env:"GEOIP_ADDRESS"` // 设备公网地址，用于粗定位
	StaticLat        float64 `env:"STATIC_LAT"`
	StaticLng        float64 `env:"STATIC_LNG"`

	// 周期任务
	PollInterval      time.Duration `env:"POLL_INTERVAL"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL"`

	// ETA 估算
	ResponderSpeedKmh float64       `env:"RESPONDER_SPEED_KMH"`
	ETACacheTTL       time.Duration `env:"ETA_CACHE_TTL"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = &Config{
		Addr:       util.GetEnvDefault("ADDR", ":8080"),
		Mode:       util.GetEnvDefault("MODE", "debug"),
		WSEndpoint: util.GetEnv("WS_ENDPOINT"),
		APIBaseURL: util.GetEnv("API_BASE_URL"),
		SessionDSN: util.GetEnvDefault("SESSION_DSN", "guard_session.db"),
		Log: logger.LogConfig{
			Level:      util.GetEnvDefault("LOG_LEVEL", "info"),
			File:       util.GetEnv("LOG_FILE"),
			MaxSizeMB:  int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
			MaxAgeDays: int(util.GetIntEnv("LOG_MAX_AGE")),
			Compress:   util.GetBoolEnv("LOG_COMPRESS"),
		},
		Cache: cache.Config{
			Type: util.GetEnvDefault("CACHE_TYPE", "local"),
			Redis: cache.RedisConfig{
				Addr:     util.GetEnvDefault("REDIS_ADDR", "localhost:6379"),
				Password: util.GetEnv("REDIS_PASSWORD"),
				DB:       int(util.GetIntEnv("REDIS_DB")),
			},
			Local: cache.LocalConfig{
				DefaultExpiration: util.GetDurationEnv("LOCAL_CACHE_DEFAULT_EXPIRATION"),
				CleanupInterval:   util.GetDurationEnv("LOCAL_CACHE_CLEANUP_INTERVAL"),
			},
		},
		ReconnectBaseDelay:   util.GetDurationEnv("RECONNECT_BASE_DELAY"),
		ReconnectMaxAttempts: int(util.GetIntEnv("RECONNECT_MAX_ATTEMPTS")),
		LocationProvider:     util.GetEnvDefault("LOCATION_PROVIDER", "static"),
		GeoIPDatabase:        util.GetEnv("GEOIP_DATABASE"),
		GeoIPAddress:         util.GetEnv("GEOIP_ADDRESS"),
		StaticLat:            util.GetFloatEnv("STATIC_LAT"),
		StaticLng:            util.GetFloatEnv("STATIC_LNG"),
		PollInterval:         util.GetDurationEnv("POLL_INTERVAL"),
		HeartbeatInterval:    util.GetDurationEnv("HEARTBEAT_INTERVAL"),
		ResponderSpeedKmh:    util.GetFloatEnv("RESPONDER_SPEED_KMH"),
		ETACacheTTL:          util.GetDurationEnv("ETA_CACHE_TTL"),
	}

	// 3. 缺省值
	if GlobalConfig.ReconnectBaseDelay <= 0 {
		GlobalConfig.ReconnectBaseDelay = time.Second
	}
	if GlobalConfig.ReconnectMaxAttempts <= 0 {
		GlobalConfig.ReconnectMaxAttempts = 5
	}
	if GlobalConfig.PollInterval <= 0 {
		GlobalConfig.PollInterval = 10 * time.Second
	}
	if GlobalConfig.HeartbeatInterval <= 0 {
		GlobalConfig.HeartbeatInterval = 30 * time.Second
	}
	if GlobalConfig.ResponderSpeedKmh <= 0 {
		GlobalConfig.ResponderSpeedKmh = 40
	}
	if GlobalConfig.ETACacheTTL <= 0 {
		GlobalConfig.ETACacheTTL = 30 * time.Second
	}

	return nil
}
