package conn

import (
	"time"

	"HibiscusGuard/pkg/util"
)

// Config 推送连接配置
type Config struct {
	// 重连退避基础延迟
	BaseDelay time.Duration
	// 最大重连次数，超出后进入 error 终态
	MaxAttempts int
	// 握手超时
	HandshakeTimeout time.Duration
	// 写超时
	WriteTimeout time.Duration
	// 心跳间隔
	PingInterval time.Duration
	// 等待pong的超时时间，超过判定连接死亡
	PongTimeout time.Duration
	// 最大消息大小
	MaxMessageSize int64
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseDelay:        DefaultBaseDelayMs * time.Millisecond,
		MaxAttempts:      DefaultMaxAttempts,
		HandshakeTimeout: DefaultHandshakeTimeout * time.Second,
		WriteTimeout:     DefaultWriteTimeout * time.Second,
		PingInterval:     DefaultPingInterval * time.Second,
		PongTimeout:      DefaultPongTimeout * time.Second,
		MaxMessageSize:   DefaultMaxMessageSize,
	}
}

// LoadConfigFromEnv 从环境变量加载连接配置
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if v := util.GetIntEnv(EnvBaseDelayMs); v > 0 {
		config.BaseDelay = time.Duration(v) * time.Millisecond
	}
	if v := util.GetIntEnv(EnvMaxAttempts); v > 0 {
		config.MaxAttempts = int(v)
	}
	if v := util.GetIntEnv(EnvHandshakeTimeout); v > 0 {
		config.HandshakeTimeout = time.Duration(v) * time.Second
	}
	if v := util.GetIntEnv(EnvWriteTimeout); v > 0 {
		config.WriteTimeout = time.Duration(v) * time.Second
	}
	if v := util.GetIntEnv(EnvPingInterval); v > 0 {
		config.PingInterval = time.Duration(v) * time.Second
	}
	if v := util.GetIntEnv(EnvPongTimeout); v > 0 {
		config.PongTimeout = time.Duration(v) * time.Second
	}
	if v := util.GetIntEnv(EnvMaxMessageSize); v > 0 {
		config.MaxMessageSize = v
	}

	return config
}
